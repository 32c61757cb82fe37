package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"trainerbook/pkg/config"
)

const LeaseCollectionName = "Sweep_leases"

// SweepLease elects a single replica to run a periodic job. A holder keeps
// the lease by re-acquiring it before ttl runs out.
type SweepLease interface {
	Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, holder string) error
}

type sweepLease struct {
	Name      string    `bson:"_id"`
	Holder    string    `bson:"holder"`
	ExpiresAt time.Time `bson:"expires_at"`
}

type mongoSweepLease struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSweepLease(cfg *config.Config) SweepLease {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSweepLease{
		cfg:        cfg,
		collection: db.Collection(LeaseCollectionName),
	}
}

// Acquire takes the lease when it is free, expired, or already ours. Losing
// the upsert race surfaces as a duplicate key error and means another holder won.
func (r *mongoSweepLease) Acquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	current := now()
	filter := bson.M{
		"_id": name,
		"$or": bson.A{
			bson.M{"holder": holder},
			bson.M{"expires_at": bson.M{"$lte": current}},
		},
	}
	update := bson.M{"$set": bson.M{"holder": holder, "expires_at": current.Add(ttl)}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var lease sweepLease
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&lease); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to acquire lease %s: %w", name, err)
	}
	return lease.Holder == holder, nil
}

func (r *mongoSweepLease) Release(ctx context.Context, name, holder string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": name, "holder": holder})
	if err != nil {
		return fmt.Errorf("failed to release lease %s: %w", name, err)
	}
	return nil
}
