package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/ispbilling/internal/clock"
	"github.com/railzwaylabs/ispbilling/internal/config"
	"github.com/railzwaylabs/ispbilling/internal/router/domain"
	"github.com/railzwaylabs/ispbilling/internal/security/vault"
	"github.com/railzwaylabs/ispbilling/pkg/db"
	"github.com/railzwaylabs/ispbilling/pkg/validation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Config config.Config
	Vault  vault.Provider
	Repo   domain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	vault       vault.Provider
	repo        domain.Repository
	defaultPort int
}

func New(p Params) domain.Service {
	port := p.Config.Router.DefaultAPIPort
	if port == 0 {
		port = 8728
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("router.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		vault:       p.Vault,
		repo:        p.Repo,
		defaultPort: port,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Router, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.IPAddress = strings.TrimSpace(req.IPAddress)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if req.APIPort == 0 {
		req.APIPort = s.defaultPort
	}

	ciphertext, err := s.vault.Encrypt([]byte(req.Password))
	if err != nil {
		return nil, fmt.Errorf("encrypt router password: %w", err)
	}

	now := s.clock.Now(ctx)
	router := &domain.Router{
		ID:                 s.genID.Generate(),
		Name:               req.Name,
		IPAddress:          req.IPAddress,
		APIPort:            req.APIPort,
		Username:           req.Username,
		PasswordCiphertext: ciphertext,
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Insert(ctx, s.db, router); err != nil {
		if db.IsUniqueViolation(err) {
			return nil, domain.ErrNameTaken
		}
		return nil, err
	}
	return router, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*domain.Router, error) {
	router, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if router == nil {
		return nil, domain.ErrNotFound
	}
	return router, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]*domain.Router, error) {
	return s.repo.List(ctx, s.db, activeOnly)
}

func (s *Service) Credentials(router *domain.Router) (domain.Credentials, error) {
	plaintext, err := s.vault.Decrypt(router.PasswordCiphertext)
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("%w: %v", domain.ErrCredential, err)
	}
	return domain.Credentials{
		Address:  router.Address(),
		Username: router.Username,
		Password: string(plaintext),
	}, nil
}

// MarkConnection always writes through s.db, never through a caller's
// transaction: the snapshot must survive a rollback of the surrounding work.
func (s *Service) MarkConnection(ctx context.Context, id snowflake.ID, online bool, at time.Time) error {
	return s.repo.UpdateConnectionState(ctx, s.db, id, online, at)
}

func (s *Service) QueueProfile(ctx context.Context, packageID, routerID snowflake.ID) (*domain.QueueProfile, error) {
	return s.repo.FindQueueProfile(ctx, s.db, packageID, routerID)
}

func (s *Service) SaveQueueProfile(ctx context.Context, profile *domain.QueueProfile) error {
	now := s.clock.Now(ctx)
	if profile.ID == 0 {
		existing, err := s.repo.FindQueueProfile(ctx, s.db, profile.PackageID, profile.RouterID)
		if err != nil {
			return err
		}
		if existing != nil {
			profile.ID = existing.ID
			profile.CreatedAt = existing.CreatedAt
		} else {
			profile.ID = s.genID.Generate()
			profile.CreatedAt = now
		}
	}
	profile.UpdatedAt = now
	return s.repo.UpsertQueueProfile(ctx, s.db, profile)
}

func (s *Service) RecordSyncLogs(ctx context.Context, logs ...*domain.SyncLog) error {
	now := s.clock.Now(ctx)
	for _, l := range logs {
		if l.ID == 0 {
			l.ID = s.genID.Generate()
		}
		if l.CreatedAt.IsZero() {
			l.CreatedAt = now
		}
	}
	if err := s.repo.InsertSyncLogs(ctx, s.db, logs); err != nil {
		s.log.Error("failed to persist sync logs", zap.Int("count", len(logs)), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) ListSyncLogs(ctx context.Context, filter domain.SyncLogFilter) ([]*domain.SyncLog, error) {
	return s.repo.ListSyncLogs(ctx, s.db, filter)
}

func (s *Service) PurgeSyncLogs(ctx context.Context, before time.Time) (int64, error) {
	return s.repo.DeleteSyncLogsBefore(ctx, s.db, before)
}
