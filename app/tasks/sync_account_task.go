package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/pressroom/app/account"
	"github.com/lysyi3m/pressroom/app/database"
)

type SyncAccountTask struct {
	Task
	Seed     *account.Seed
	userRepo database.UserRepository
}

func NewSyncAccountTask(seed *account.Seed, userRepo database.UserRepository) *SyncAccountTask {
	return &SyncAccountTask{
		Task:     NewTask(TaskTypeSyncAccount, seed.ID),
		Seed:     seed,
		userRepo: userRepo,
	}
}

func (t *SyncAccountTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	created, err := t.userRepo.UpsertUser(ctx, t.Seed.ToUserSeed())
	if err != nil {
		return fmt.Errorf("failed to sync account seed to database: %w", err)
	}

	slog.Info("Task completed",
		"type", "SyncAccount",
		"account", t.Subject,
		"created", created,
		"duration", t.GetDuration())

	return nil
}
