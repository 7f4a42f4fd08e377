package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ReadinessState string

const (
	ReadinessStateReady    ReadinessState = "ready"
	ReadinessStateNotReady ReadinessState = "not_ready"
	ReadinessStateOptional ReadinessState = "optional"
)

type ReadinessIssue struct {
	ID       string            `json:"id"`
	Status   ReadinessState    `json:"status"`
	Evidence map[string]string `json:"evidence,omitempty"`
}

type ReadinessResponse struct {
	SystemState ReadinessState   `json:"system_state"`
	Issues      []ReadinessIssue `json:"issues"`
}

func (s *Server) RegisterSystemRoutes() {
	s.engine.GET("/healthz", s.Healthz)
	s.engine.GET("/ready", s.GetSystemReadiness)
	if s.metrics != nil && s.metrics.Registry != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}
}

func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": s.clock.Now(c.Request.Context())})
}

// GetSystemReadiness reports whether the database answers with the expected
// schema and, when enabled, whether Redis answers.
func (s *Server) GetSystemReadiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	issues := make([]ReadinessIssue, 0, 3)
	ready := true

	if err := s.pingDB(ctx); err != nil {
		ready = false
		issues = append(issues, ReadinessIssue{
			ID:       "database",
			Status:   ReadinessStateNotReady,
			Evidence: map[string]string{"error": err.Error()},
		})
	} else {
		issues = append(issues, ReadinessIssue{ID: "database", Status: ReadinessStateReady})
	}

	switch {
	case s.gate == nil:
		issues = append(issues, ReadinessIssue{ID: "schema", Status: ReadinessStateOptional})
	case !ready:
		issues = append(issues, ReadinessIssue{ID: "schema", Status: ReadinessStateNotReady})
	default:
		if err := s.gate.MustBeActive(ctx); err != nil {
			ready = false
			issues = append(issues, ReadinessIssue{
				ID:       "schema",
				Status:   ReadinessStateNotReady,
				Evidence: map[string]string{"error": err.Error()},
			})
		} else {
			issues = append(issues, ReadinessIssue{ID: "schema", Status: ReadinessStateReady})
		}
	}

	switch {
	case s.redis == nil:
		issues = append(issues, ReadinessIssue{ID: "redis", Status: ReadinessStateOptional})
	case s.redis.Ping(ctx).Err() != nil:
		ready = false
		issues = append(issues, ReadinessIssue{
			ID:       "redis",
			Status:   ReadinessStateNotReady,
			Evidence: map[string]string{"error": "ping failed"},
		})
	default:
		issues = append(issues, ReadinessIssue{ID: "redis", Status: ReadinessStateReady})
	}

	resp := ReadinessResponse{SystemState: ReadinessStateReady, Issues: issues}
	status := http.StatusOK
	if !ready {
		resp.SystemState = ReadinessStateNotReady
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}

func (s *Server) pingDB(ctx context.Context) error {
	if s.db == nil {
		return errDBNotConfigured
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
