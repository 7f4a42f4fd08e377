package migration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// migrationLockKey is shared by every ispbilling process that can run `migrate`.
const migrationLockKey int64 = 4_717_200_118

var ErrMigrationLocked = errors.New("another migration process holds the advisory lock")

// withAdvisoryLock runs fn while holding the postgres session lock. The lock is
// taken and released on one pinned connection because advisory locks are
// scoped to the session, not the pool.
func withAdvisoryLock(ctx context.Context, db *sql.DB, log *zap.Logger, fn func(context.Context) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("pin migration connection: %w", err)
	}
	defer conn.Close()

	var locked bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", migrationLockKey).Scan(&locked); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !locked {
		return ErrMigrationLocked
	}
	defer func() {
		var released bool
		err := conn.QueryRowContext(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrationLockKey).Scan(&released)
		switch {
		case err != nil:
			log.Warn("release migration lock", zap.Error(err))
		case !released:
			log.Warn("migration lock was not held by this session")
		}
	}()

	return fn(ctx)
}
