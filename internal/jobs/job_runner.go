package jobs

import (
	"sync/atomic"

	"borrow-service/internal/config"
	"borrow-service/internal/logger"
	"borrow-service/internal/service"
)

// JobRunner coordinates all scheduled jobs
type JobRunner struct {
	overdue service.OverdueService
	config  *config.Config

	sweeping atomic.Bool
}

// NewJobRunner creates a new job runner with all dependencies
func NewJobRunner(overdue service.OverdueService, cfg *config.Config) *JobRunner {
	return &JobRunner{
		overdue: overdue,
		config:  cfg,
	}
}

// Config returns the configuration the jobs were built with
func (jr *JobRunner) Config() *config.Config {
	return jr.config
}

// runWithRecovery wraps job execution with panic recovery
func (jr *JobRunner) runWithRecovery(jobName string, jobFunc func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Job panicked", "job", jobName, "panic", r)
		}
	}()

	logger.Info("Starting job", "job", jobName)
	jobFunc()
	logger.Info("Job completed", "job", jobName)
}

// RunAllJobs runs every job once (for manual execution)
func (jr *JobRunner) RunAllJobs() {
	jr.MarkOverdueBorrows()
}
