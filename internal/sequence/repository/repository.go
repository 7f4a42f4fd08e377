package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	sequencedomain "github.com/railzwaylabs/ispbilling/internal/sequence/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() sequencedomain.Repository {
	return &repo{}
}

func ProvideGenerator(r sequencedomain.Repository) sequencedomain.Generator {
	return &generator{repo: r}
}

// Next upserts the counter row. The row lock taken by the upsert serializes
// concurrent callers until their transactions finish.
func (r *repo) Next(ctx context.Context, db *gorm.DB, scope string) (int64, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return 0, sequencedomain.ErrInvalidScope
	}
	now := time.Now().UTC()

	var value int64
	switch db.Dialector.Name() {
	case "mysql":
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO number_sequences (scope, value, updated_at) VALUES (?, 1, ?)
			 ON DUPLICATE KEY UPDATE value = value + 1, updated_at = VALUES(updated_at)`,
			scope, now,
		).Error; err != nil {
			return 0, fmt.Errorf("advance sequence %s: %w", scope, err)
		}
		if err := db.WithContext(ctx).Raw(
			`SELECT value FROM number_sequences WHERE scope = ?`, scope,
		).Scan(&value).Error; err != nil {
			return 0, err
		}
	default:
		if err := db.WithContext(ctx).Raw(
			`INSERT INTO number_sequences (scope, value, updated_at) VALUES (?, 1, ?)
			 ON CONFLICT (scope) DO UPDATE SET value = number_sequences.value + 1, updated_at = excluded.updated_at
			 RETURNING value`,
			scope, now,
		).Scan(&value).Error; err != nil {
			return 0, fmt.Errorf("advance sequence %s: %w", scope, err)
		}
	}

	if value <= 0 {
		return 0, fmt.Errorf("advance sequence %s: no value returned", scope)
	}
	return value, nil
}

type generator struct {
	repo sequencedomain.Repository
}

func (g *generator) NextCode(ctx context.Context, db *gorm.DB, prefix string, at time.Time, monthly bool) (string, error) {
	scope := sequencedomain.Scope(prefix, at, monthly)
	n, err := g.repo.Next(ctx, db, scope)
	if err != nil {
		return "", err
	}
	return sequencedomain.Format(scope, n), nil
}
