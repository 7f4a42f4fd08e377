package migration

import (
	"context"
	"fmt"

	billingdomain "github.com/railzwaylabs/ispbilling/internal/billing/domain"
	customerdomain "github.com/railzwaylabs/ispbilling/internal/customer/domain"
	invoicedomain "github.com/railzwaylabs/ispbilling/internal/invoice/domain"
	productdomain "github.com/railzwaylabs/ispbilling/internal/product/domain"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	sequencedomain "github.com/railzwaylabs/ispbilling/internal/sequence/domain"
	subscriptiondomain "github.com/railzwaylabs/ispbilling/internal/subscription/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		&customerdomain.Zone{},
		&customerdomain.Customer{},
		&productdomain.Package{},
		&routerdomain.Router{},
		&routerdomain.QueueProfile{},
		&routerdomain.SyncLog{},
		&subscriptiondomain.Subscription{},
		&subscriptiondomain.History{},
		&billingdomain.Bill{},
		&billingdomain.Payment{},
		&billingdomain.AdvancePayment{},
		&invoicedomain.Invoice{},
		&invoicedomain.Discount{},
		&invoicedomain.Refund{},
		&sequencedomain.NumberSequence{},
	}
}

// openSubscriptionIndex enforces one active or suspended subscription per customer.
// MySQL has no partial indexes, so there the service-level check is the only guard.
const openSubscriptionIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_subscriptions_open_customer
	ON subscriptions (customer_id) WHERE status IN ('active', 'suspended')`

const dropOpenSubscriptionIndex = `DROP INDEX IF EXISTS ux_subscriptions_open_customer`

// AutoMigrate builds the schema from the gorm models for drivers that do not
// run the embedded postgres migrations.
func AutoMigrate(ctx context.Context, db *gorm.DB, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	conn := db.WithContext(ctx)
	partial := conn.Dialector.Name() == "sqlite"

	// The sqlite migrator cannot parse a partial index back out of the
	// schema, so the index is dropped for the duration of AutoMigrate.
	if partial {
		if err := conn.Exec(dropOpenSubscriptionIndex).Error; err != nil {
			return fmt.Errorf("drop open subscription index: %w", err)
		}
	}
	migrateErr := conn.AutoMigrate(Models()...)
	if partial {
		if err := conn.Exec(openSubscriptionIndex).Error; err != nil {
			if migrateErr != nil {
				return fmt.Errorf("auto migrate: %w", migrateErr)
			}
			return fmt.Errorf("create open subscription index: %w", err)
		}
	}
	if migrateErr != nil {
		return fmt.Errorf("auto migrate: %w", migrateErr)
	}
	log.Info("schema auto-migrated", zap.String("dialect", conn.Dialector.Name()), zap.Int("models", len(Models())))
	return nil
}
