package db

import (
	"errors"
	"testing"

	"github.com/railzwaylabs/ispbilling/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type uniqueRow struct {
	ID   int64  `gorm:"primaryKey"`
	Code string `gorm:"uniqueIndex"`
}

func TestOpenSQLiteAndDetectUniqueViolation(t *testing.T) {
	cfg := config.Config{Database: config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + t.Name() + "?mode=memory&cache=shared",
	}}

	conn, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&uniqueRow{}))

	require.NoError(t, conn.Create(&uniqueRow{ID: 1, Code: "A"}).Error)
	err = conn.Create(&uniqueRow{ID: 2, Code: "A"}).Error
	require.Error(t, err)
	require.True(t, IsUniqueViolation(err))
}

func TestIsUniqueViolation(t *testing.T) {
	require.False(t, IsUniqueViolation(nil))
	require.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	require.True(t, IsUniqueViolation(errors.New(`ERROR: duplicate key value violates unique constraint "bills_pkey"`)))
	require.False(t, IsUniqueViolation(errors.New("connection refused")))
}

func TestDialectorRejectsUnknownDriver(t *testing.T) {
	_, err := dialectorFor(config.DatabaseConfig{Driver: "oracle"})
	require.Error(t, err)
}
