package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

var ErrInvalidScope = errors.New("invalid_sequence_scope")

// NumberSequence is one counter per human-readable code scope, e.g. "BILL-2025-03".
type NumberSequence struct {
	Scope     string    `gorm:"primaryKey;type:varchar(64)"`
	Value     int64     `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (NumberSequence) TableName() string { return "number_sequences" }

type Repository interface {
	// Next atomically increments the scope's counter on db and returns the new value.
	// Call it on the same transaction that stores the numbered row.
	Next(ctx context.Context, db *gorm.DB, scope string) (int64, error)
}

// Generator hands out codes of the form PREFIX-YYYY-NNNN or PREFIX-YYYY-MM-NNNN.
type Generator interface {
	NextCode(ctx context.Context, db *gorm.DB, prefix string, at time.Time, monthly bool) (string, error)
}

const (
	PrefixBill     = "BILL"
	PrefixPayment  = "PAY"
	PrefixAdvance  = "ADV"
	PrefixInvoice  = "INV"
	PrefixRefund   = "REF"
	PrefixCustomer = "ISP"
)

// Scope returns the counter key for a prefix and period.
func Scope(prefix string, at time.Time, monthly bool) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if monthly {
		return fmt.Sprintf("%s-%04d-%02d", prefix, at.Year(), int(at.Month()))
	}
	return fmt.Sprintf("%s-%04d", prefix, at.Year())
}

// Format renders the code for value n inside scope.
func Format(scope string, n int64) string {
	return fmt.Sprintf("%s-%04d", scope, n)
}
