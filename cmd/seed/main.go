package main

import (
	"context"
	"flag"
	"os"
	"time"
	_ "time/tzdata"

	trainersrepo "trainerbook/internal/trainers/repository"
	"trainerbook/internal/trainers/seed"
	"trainerbook/internal/trainers/validator"
	"trainerbook/pkg/config"
)

const JobName = "seed"

func main() {
	file := flag.String("file", "trainers.yaml", "path to the trainers seed file")
	flag.Parse()

	cfg := config.Load(JobName)

	f, err := os.Open(*file)
	if err != nil {
		cfg.Log.Fatal("Failed to open seed file", "file", *file, "error", err)
	}
	trainers, err := seed.Parse(f)
	_ = f.Close()
	if err != nil {
		cfg.Log.Fatal("Failed to read seed file", "file", *file, "error", err)
	}
	if len(trainers) == 0 {
		cfg.Log.Warn("Seed file has no trainers", "file", *file)
		return
	}

	cfg.SetMongo()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	n, err := seed.Apply(ctx, trainers, validator.NewTrainerValidator(cfg.Log), trainersrepo.NewMongoTrainerRepository(cfg), cfg.Log)
	cancel()
	cfg.GracefulShutdown()

	if err != nil {
		cfg.Log.Error("Seeding failed", "error", err)
		os.Exit(1)
	}
	cfg.Log.Info("Seeding completed", "trainers", n)
}
