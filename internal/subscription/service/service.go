package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/ispbilling/internal/clock"
	"github.com/railzwaylabs/ispbilling/internal/config"
	customerdomain "github.com/railzwaylabs/ispbilling/internal/customer/domain"
	"github.com/railzwaylabs/ispbilling/internal/mikrotik"
	productdomain "github.com/railzwaylabs/ispbilling/internal/product/domain"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	"github.com/railzwaylabs/ispbilling/internal/subscription/domain"
	"github.com/railzwaylabs/ispbilling/pkg/db"
	"github.com/railzwaylabs/ispbilling/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Config    config.Config
	Repo      domain.Repository
	Customers customerdomain.Service
	Packages  productdomain.Service
	Routers   routerdomain.Service
	Gateway   mikrotik.Gateway
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository

	customers customerdomain.Service
	packages  productdomain.Service
	routers   routerdomain.Service
	gateway   mikrotik.Gateway

	pause          time.Duration
	passwordLength int
	sleep          func(ctx context.Context, d time.Duration) error
}

func New(p Params) domain.Service {
	length := p.Config.Router.PasswordLength
	if length <= 0 {
		length = 12
	}
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("subscription.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		repo:           p.Repo,
		customers:      p.Customers,
		packages:       p.Packages,
		routers:        p.Routers,
		gateway:        p.Gateway,
		pause:          p.Config.Router.ProvisioningPause,
		passwordLength: length,
		sleep:          sleepContext,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Subscription, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if strings.ContainsAny(req.Username, " \t") {
		return nil, validation.Field("mikrotik_username", "no_whitespace", "must not contain whitespace")
	}
	if req.ConnectionFee.IsNegative() {
		return nil, validation.Field("connection_fee", "min", "must not be negative")
	}
	if req.ReconnectionFee.IsNegative() {
		return nil, validation.Field("reconnection_fee", "min", "must not be negative")
	}

	customer, err := s.customers.Get(ctx, req.CustomerID)
	if err != nil {
		return nil, err
	}
	pkg, err := s.packages.Get(ctx, req.PackageID)
	if err != nil {
		return nil, err
	}
	if !pkg.IsActive {
		return nil, productdomain.ErrInactive
	}
	var router *routerdomain.Router
	if req.RouterID != nil && *req.RouterID != 0 {
		router, err = s.routers.Get(ctx, *req.RouterID)
		if err != nil {
			return nil, err
		}
		if !router.IsActive {
			return nil, routerdomain.ErrInactive
		}
	}

	open, err := s.repo.FindOpenByCustomer(ctx, s.db, customer.ID)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, domain.ErrActiveSubscriptionExists
	}

	username := req.Username
	if username == "" {
		username = usernameFor(customer.Code)
	}
	taken, err := s.repo.UsernameExists(ctx, s.db, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrUsernameTaken
	}
	password := req.Password
	if password == "" {
		password, err = generatePassword(s.passwordLength)
		if err != nil {
			return nil, err
		}
	}

	now := s.clock.Now(ctx)
	start := clock.StartOfDay(now)
	if req.StartDate != nil {
		start = clock.StartOfDay(*req.StartDate)
	}
	sub := &domain.Subscription{
		ID:                s.genID.Generate(),
		CustomerID:        customer.ID,
		PackageID:         pkg.ID,
		BillingDay:        req.BillingDay,
		BillingStartMonth: req.BillingStartMonth,
		StartDate:         start,
		Status:            domain.StatusActive,
		MikrotikUsername:  username,
		MikrotikPassword:  password,
		StaticIP:          req.StaticIP,
		ConnectionFee:     req.ConnectionFee.Round(2),
		ReconnectionFee:   req.ReconnectionFee.Round(2),
		Notes:             req.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	var (
		logs   syncLogs
		secret mikrotik.Result
	)
	if router != nil {
		sub.RouterID = &router.ID
		secret, err = s.provision(ctx, sub, customer, pkg, router, req.ForceLink, &logs)
		if err != nil {
			s.recordSyncLogs(ctx, logs)
			s.log.Warn("subscription creation rolled back",
				zap.String("customer_code", customer.Code),
				zap.String("router", router.Name),
				zap.Error(err),
			)
			return nil, err
		}
		sub.IsSynced = true
		sub.LastSyncedAt = &now
		sub.MikrotikUserID = optional(secret.RemoteID)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(ctx, tx, sub); err != nil {
			return err
		}
		notes := "Subscription created"
		if router != nil {
			notes = "Subscription created and synced"
		}
		return s.repo.InsertHistory(ctx, tx, s.historyEntry(ctx, sub.ID, domain.HistoryCreated,
			nil, map[string]any{"status": sub.Status}, actorOr(req.Actor), notes))
	})
	if err != nil {
		if router != nil && !secret.Existing {
			s.compensate(ctx, router, sub, &logs)
		}
		s.recordSyncLogs(ctx, logs)
		return nil, s.insertError(ctx, username, err)
	}
	s.recordSyncLogs(ctx, logs)

	s.log.Info("subscription created",
		zap.String("subscription_id", sub.ID.String()),
		zap.String("customer_code", customer.Code),
		zap.String("username", sub.MikrotikUsername),
		zap.Bool("synced", sub.IsSynced),
	)
	return sub, nil
}

// compensate removes a secret created for a subscription that never got persisted.
func (s *Service) compensate(ctx context.Context, router *routerdomain.Router, sub *domain.Subscription, logs *syncLogs) {
	res := s.gateway.DeletePPPoEUser(ctx, router, sub.MikrotikUsername)
	logs.add(res, router.ID, entityPPPoEUser, sub.MikrotikUsername)
	if !res.Success {
		s.log.Error("orphaned PPPoE secret left on router",
			zap.String("router", router.Name),
			zap.String("username", sub.MikrotikUsername),
			zap.String("message", res.Message),
		)
	}
}

func (s *Service) insertError(ctx context.Context, username string, err error) error {
	if !db.IsUniqueViolation(err) {
		return err
	}
	if taken, lookupErr := s.repo.UsernameExists(ctx, s.db, username); lookupErr == nil && taken {
		return domain.ErrUsernameTaken
	}
	return domain.ErrActiveSubscriptionExists
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Subscription, error) {
	sub, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrNotFound
	}
	return sub, nil
}

func (s *Service) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Subscription, error) {
	return s.repo.List(ctx, s.db, filter)
}

func (s *Service) History(ctx context.Context, id snowflake.ID) ([]*domain.History, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListHistory(ctx, s.db, id)
}

// ListBillable returns the subscriptions whose billing day falls on asOf. On the
// last day of a month, billing days that the month does not have are included.
func (s *Service) ListBillable(ctx context.Context, asOf time.Time) ([]*domain.Subscription, error) {
	day := asOf.Day()
	items, err := s.repo.ListBillable(ctx, s.db, day, day == clock.DaysIn(asOf))
	if err != nil {
		return nil, err
	}
	today := clock.StartOfDay(asOf)
	out := items[:0]
	for _, sub := range items {
		if sub.StartDate.After(today) {
			continue
		}
		if sub.BillingStartMonth != nil && monthStart(today).Before(monthStart(*sub.BillingStartMonth)) {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (s *Service) ListPastBillingDay(ctx context.Context, asOf time.Time) ([]*domain.Subscription, error) {
	return s.repo.ListPastBillingDay(ctx, s.db, asOf.Day())
}

func (s *Service) historyEntry(ctx context.Context, subscriptionID snowflake.ID, action domain.HistoryAction, oldValue, newValue map[string]any, actor, notes string) *domain.History {
	entry := &domain.History{
		ID:             s.genID.Generate(),
		SubscriptionID: subscriptionID,
		Action:         action,
		OldValue:       jsonValue(oldValue),
		NewValue:       jsonValue(newValue),
		Actor:          actor,
		CreatedAt:      s.clock.Now(ctx),
	}
	if notes != "" {
		entry.Notes = &notes
	}
	return entry
}

func jsonValue(v map[string]any) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// usernameFor derives the PPPoE login from a customer code: ISP-2025-0001 becomes user20250001.
func usernameFor(customerCode string) string {
	base := strings.ReplaceAll(customerCode, "ISP-", "")
	return "user" + strings.ReplaceAll(base, "-", "")
}

// generatePassword returns a URL-safe password carrying n random bytes.
func generatePassword(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func actorOr(actor string) string {
	if actor == "" {
		return domain.ActorStaff
	}
	return actor
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
