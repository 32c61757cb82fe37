package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	trainerserrors "trainerbook/internal/trainers/errors"
	"trainerbook/pkg/config"
	"trainerbook/pkg/model"
)

const CollectionName = "Trainers"

// TrainerDirectory is the read side used by availability and booking flows.
type TrainerDirectory interface {
	GetTrainer(ctx context.Context, trainerID string) (*model.Trainer, error)
}

type TrainerRepository interface {
	TrainerDirectory
	Upsert(ctx context.Context, trainer *model.Trainer) error
	FindAll(ctx context.Context) ([]*model.Trainer, error)
}

type mongoTrainerRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoTrainerRepository(cfg *config.Config) TrainerRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTrainerRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoTrainerRepository) GetTrainer(ctx context.Context, trainerID string) (*model.Trainer, error) {
	ctx, cancel := withDeadline(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var trainer model.Trainer
	err := r.collection.FindOne(ctx, bson.M{"_id": trainerID}).Decode(&trainer)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, trainerserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find trainer: %w", err)
	}
	return &trainer, nil
}

func (r *mongoTrainerRepository) FindAll(ctx context.Context) ([]*model.Trainer, error) {
	ctx, cancel := withDeadline(ctx, r.cfg.ReadTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list trainers: %w", err)
	}
	defer cursor.Close(ctx)

	var trainers []*model.Trainer
	if err := cursor.All(ctx, &trainers); err != nil {
		return nil, fmt.Errorf("failed to decode trainers: %w", err)
	}
	return trainers, nil
}

// Upsert replaces the trainer document wholesale; windows are never merged.
func (r *mongoTrainerRepository) Upsert(ctx context.Context, trainer *model.Trainer) error {
	ctx, cancel := withDeadline(ctx, r.cfg.WriteTimeout)
	defer cancel()

	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": trainer.ID},
		trainer,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert trainer %s: %w", trainer.ID, err)
	}
	return nil
}

// withDeadline bounds ctx by timeout unless the caller already set a tighter deadline.
func withDeadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
