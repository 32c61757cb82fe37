package validators

import "go.mongodb.org/mongo-driver/bson"

var TrainerValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType":             "object",
		"required":             []string{"_id", "name", "availability_mode", "windows", "price_per_session"},
		"additionalProperties": true,
		"properties": bson.M{
			"_id":               bson.M{"bsonType": "string", "maxLength": 64},
			"name":              bson.M{"bsonType": "string", "minLength": 2, "maxLength": 100},
			"availability_mode": bson.M{"bsonType": "string", "enum": []string{"date", "weekly"}},
			"price_per_session": bson.M{"bsonType": []string{"long", "int"}, "minimum": 1},
			"currency":          bson.M{"bsonType": "string", "minLength": 3, "maxLength": 3},
			"time_zone":         bson.M{"bsonType": "string"},
			"windows": bson.M{
				"bsonType": "array",
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"start_time", "end_time"},
					"properties": bson.M{
						"date":       bson.M{"bsonType": "string", "pattern": civilDatePattern},
						"weekday":    bson.M{"bsonType": "string"},
						"start_time": bson.M{"bsonType": "string", "pattern": hhmmPattern},
						"end_time":   bson.M{"bsonType": "string", "pattern": hhmmPattern},
					},
				},
			},
		},
	},
}
