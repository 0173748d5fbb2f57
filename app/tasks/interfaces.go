package tasks

import (
	"github.com/lysyi3m/pressroom/app/account"
)

// TaskSchedulerInterface is what the application and the HTTP layer need from
// the background worker pool.
//
//	scheduler := NewScheduler(seedCache, userRepo, interval, workers)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewPublishArticleTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

// SeedSource provides the account seeds synced into the user table
type SeedSource interface {
	Run() error
	GetSeeds() map[string]*account.Seed
}

var _ SeedSource = (*account.SeedCache)(nil)
