package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/railzwaylabs/ispbilling/internal/billing/domain"
	billingcycledomain "github.com/railzwaylabs/ispbilling/internal/billingcycle/domain"
	"github.com/railzwaylabs/ispbilling/internal/bootstrap"
	"github.com/railzwaylabs/ispbilling/internal/clock"
	"github.com/railzwaylabs/ispbilling/internal/config"
	customerdomain "github.com/railzwaylabs/ispbilling/internal/customer/domain"
	invoicedomain "github.com/railzwaylabs/ispbilling/internal/invoice/domain"
	"github.com/railzwaylabs/ispbilling/internal/mikrotik"
	"github.com/railzwaylabs/ispbilling/internal/observability"
	productdomain "github.com/railzwaylabs/ispbilling/internal/product/domain"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	subscriptiondomain "github.com/railzwaylabs/ispbilling/internal/subscription/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RegisterRoutes),
)

type Params struct {
	fx.In

	Config  config.Config
	Log     *zap.Logger
	DB      *gorm.DB      `optional:"true"`
	Redis   *redis.Client `optional:"true"`
	Clock   clock.Clock
	Engine  *gin.Engine
	Metrics *observability.Metrics `optional:"true"`
	Gate    bootstrap.SchemaGate   `optional:"true"`

	CustomerSvc     customerdomain.Service
	PackageSvc      productdomain.Service
	RouterSvc       routerdomain.Service
	Gateway         mikrotik.Gateway
	SubscriptionSvc subscriptiondomain.Service
	BillingSvc      billingdomain.Service
	InvoiceSvc      invoicedomain.Service
	CycleSvc        billingcycledomain.Service
}

type Server struct {
	cfg     config.Config
	log     *zap.Logger
	db      *gorm.DB
	redis   *redis.Client
	clock   clock.Clock
	engine  *gin.Engine
	metrics *observability.Metrics
	gate    bootstrap.SchemaGate

	customerSvc     customerdomain.Service
	packageSvc      productdomain.Service
	routerSvc       routerdomain.Service
	gateway         mikrotik.Gateway
	subscriptionSvc subscriptiondomain.Service
	billingSvc      billingdomain.Service
	invoiceSvc      invoicedomain.Service
	cycleSvc        billingcycledomain.Service
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:             p.Config,
		log:             p.Log.Named("http"),
		db:              p.DB,
		redis:           p.Redis,
		clock:           p.Clock,
		engine:          p.Engine,
		metrics:         p.Metrics,
		gate:            p.Gate,
		customerSvc:     p.CustomerSvc,
		packageSvc:      p.PackageSvc,
		routerSvc:       p.RouterSvc,
		gateway:         p.Gateway,
		subscriptionSvc: p.SubscriptionSvc,
		billingSvc:      p.BillingSvc,
		invoiceSvc:      p.InvoiceSvc,
		cycleSvc:        p.CycleSvc,
	}
}

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), RequestID(), AccessLog(log.Named("http.access")))
	return engine
}

func RegisterRoutes(s *Server) {
	s.RegisterSystemRoutes()

	s.engine.POST("/customers", s.CreateCustomer)
	s.engine.GET("/customers/:id", s.GetCustomer)

	s.engine.POST("/packages", s.CreatePackage)
	s.engine.GET("/packages", s.ListPackages)
	s.engine.PATCH("/packages/:id", s.UpdatePackage)
	s.engine.DELETE("/packages/:id", s.DeletePackage)
	s.engine.POST("/packages/:id/routers/:router_id/sync", s.SyncPackageToRouter)
	s.engine.DELETE("/packages/:id/routers/:router_id", s.RemovePackageFromRouter)

	s.engine.POST("/routers", s.CreateRouter)
	s.engine.POST("/routers/:id/test", s.TestRouter)
	s.engine.GET("/routers/:id/active", s.ListActiveSessions)

	subs := s.engine.Group("/subscriptions")
	subs.POST("", s.CreateSubscription)
	subs.GET("/:id", s.GetSubscription)
	subs.GET("/:id/history", s.GetSubscriptionHistory)
	subs.POST("/:id/suspend", s.SuspendSubscription)
	subs.POST("/:id/activate", s.ActivateSubscription)
	subs.POST("/:id/cancel", s.CancelSubscription)
	subs.POST("/:id/sync", s.SyncSubscription)

	bills := s.engine.Group("/bills")
	bills.POST("", s.CreateBill)
	bills.GET("/:id", s.GetBill)
	bills.POST("/:id/payments", s.RecordPayment)
	bills.POST("/:id/discounts", s.ApplyDiscount)
	bills.POST("/:id/invoice", s.IssueInvoice)

	s.engine.POST("/advance-payments", s.CreateAdvancePayment)

	s.engine.GET("/invoices/:id/explanation", s.ExplainInvoice)
	s.engine.GET("/invoices/:id/pdf", s.DownloadInvoicePDF)

	s.engine.POST("/discounts", s.CreateDiscount)

	refunds := s.engine.Group("/refunds")
	refunds.POST("", s.RequestRefund)
	refunds.POST("/:id/approve", s.ApproveRefund)
	refunds.POST("/:id/reject", s.RejectRefund)
	refunds.POST("/:id/complete", s.CompleteRefund)

	s.engine.POST("/billing/run", s.RunBillingCycle)
	s.engine.POST("/billing/suspensions", s.EvaluateSuspensions)
}

// RunHTTP serves the engine for the lifetime of the fx app.
func RunHTTP(lc fx.Lifecycle, cfg config.Config, engine *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			log.Info("http server listening", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
