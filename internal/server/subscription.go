package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	subscriptiondomain "github.com/railzwaylabs/ispbilling/internal/subscription/domain"
)

func (s *Server) CreateSubscription(c *gin.Context) {
	var req subscriptiondomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Actor = actorFromHeader(c)

	resp, err := s.subscriptionSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, resp)
}

func (s *Server) GetSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := s.subscriptionSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

func (s *Server) GetSubscriptionHistory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := s.subscriptionSvc.History(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

type subscriptionActionRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
	Purge  bool   `json:"purge"`
}

// bindAction accepts an empty body.
func bindAction(c *gin.Context) (subscriptionActionRequest, bool) {
	var req subscriptionActionRequest
	if c.Request.ContentLength == 0 {
		return req, true
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return req, false
	}
	req.Reason = strings.TrimSpace(req.Reason)
	req.Notes = strings.TrimSpace(req.Notes)
	return req, true
}

func (s *Server) SuspendSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	body, ok := bindAction(c)
	if !ok {
		return
	}
	resp, err := s.subscriptionSvc.Suspend(c.Request.Context(), subscriptiondomain.SuspendRequest{
		ID:     id,
		Reason: body.Reason,
		Actor:  actorFromHeader(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

func (s *Server) ActivateSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	body, ok := bindAction(c)
	if !ok {
		return
	}
	resp, err := s.subscriptionSvc.Activate(c.Request.Context(), subscriptiondomain.ActivateRequest{
		ID:    id,
		Notes: body.Notes,
		Actor: actorFromHeader(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

func (s *Server) CancelSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	body, ok := bindAction(c)
	if !ok {
		return
	}
	resp, err := s.subscriptionSvc.Cancel(c.Request.Context(), subscriptiondomain.CancelRequest{
		ID:     id,
		Reason: body.Reason,
		Purge:  body.Purge,
		Actor:  actorFromHeader(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

func (s *Server) SyncSubscription(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := s.subscriptionSvc.SyncToRouter(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}
