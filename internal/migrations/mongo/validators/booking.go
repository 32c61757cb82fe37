package validators

import "go.mongodb.org/mongo-driver/bson"

const (
	civilDatePattern = `^\d{4}-\d{2}-\d{2}$`
	hhmmPattern      = `^(([01]\d|2[0-3]):[0-5]\d|24:00)$`
)

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"trainer_id",
			"user_id",
			"date",
			"start_time",
			"end_time",
			"status",
			"slot_held",
			"created_at",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},

			"trainer_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"date": bson.M{
				"bsonType": "string",
				"pattern":  civilDatePattern,
			},

			"start_time": bson.M{
				"bsonType": "string",
				"pattern":  hhmmPattern,
			},

			"end_time": bson.M{
				"bsonType": "string",
				"pattern":  hhmmPattern,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending_payment",
					"confirmed",
					"cancelled",
					"completed",
				},
			},

			"slot_held": bson.M{
				"bsonType": "bool",
			},

			"notes": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"payment_reference": bson.M{
				"bsonType":  "string",
				"maxLength": 255,
			},

			"cancel_reason": bson.M{
				"bsonType": "string",
				"enum": []string{
					"user",
					"admin",
					"payment_failed",
					"expired",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
