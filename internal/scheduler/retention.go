package scheduler

import (
	"context"

	"go.uber.org/zap"
)

// syncLogRetentionJob deletes router sync logs older than the retention window.
func (s *Scheduler) syncLogRetentionJob(ctx context.Context, run *JobRun) error {
	retentionDays := s.cfg.SyncLogRetentionDays
	if retentionDays <= 0 {
		s.log.Info("sync log retention disabled", zap.Int("days", retentionDays))
		return nil
	}

	cutoff := run.AsOf.AddDate(0, 0, -retentionDays)
	deleted, err := s.routers.PurgeSyncLogs(ctx, cutoff)
	if err != nil {
		return err
	}
	s.log.Info("sync logs purged", zap.Time("cutoff", cutoff), zap.Int64("deleted", deleted))
	run.AddProcessed(int(deleted))
	return nil
}
