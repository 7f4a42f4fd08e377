package server

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	billingdomain "github.com/railzwaylabs/ispbilling/internal/billing/domain"
	"github.com/railzwaylabs/ispbilling/internal/clock"
)

func (s *Server) CreateBill(c *gin.Context) {
	var req billingdomain.CreateBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	resp, err := s.billingSvc.CreateBill(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, resp)
}

type billResponse struct {
	*billingdomain.Bill
	Payments []*billingdomain.Payment `json:"payments"`
}

func (s *Server) GetBill(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	bill, err := s.billingSvc.GetBill(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	payments, err := s.billingSvc.ListPayments(ctx, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, billResponse{Bill: bill, Payments: payments})
}

func (s *Server) RecordPayment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req billingdomain.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.BillID = id

	resp, err := s.billingSvc.RecordPayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, resp)
}

type applyDiscountRequest struct {
	DiscountID snowflake.ID `json:"discount_id"`
}

func (s *Server) ApplyDiscount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req applyDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.DiscountID <= 0 {
		AbortWithError(c, newValidationError("discount_id", "required", "is required"))
		return
	}
	resp, err := s.billingSvc.ApplyDiscount(c.Request.Context(), id, req.DiscountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

func (s *Server) CreateAdvancePayment(c *gin.Context) {
	var req billingdomain.CreateAdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	resp, err := s.billingSvc.CreateAdvancePayment(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, resp)
}

type batchRequest struct {
	Date string `json:"date" form:"date"`
}

// asOfFromRequest reads an optional YYYY-MM-DD date from the query or body,
// defaulting to today.
func (s *Server) asOfFromRequest(c *gin.Context) (time.Time, bool) {
	var req batchRequest
	_ = c.ShouldBindQuery(&req)
	if req.Date == "" && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return time.Time{}, false
		}
	}
	now := s.clock.Now(c.Request.Context())
	if req.Date == "" {
		return clock.StartOfDay(now), true
	}
	day, err := time.ParseInLocation(time.DateOnly, req.Date, now.Location())
	if err != nil {
		AbortWithError(c, newValidationError("date", "invalid_date", "must be YYYY-MM-DD"))
		return time.Time{}, false
	}
	return day, true
}

func (s *Server) RunBillingCycle(c *gin.Context) {
	asOf, ok := s.asOfFromRequest(c)
	if !ok {
		return
	}
	resp, err := s.cycleSvc.RunBillingCycle(c.Request.Context(), asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

func (s *Server) EvaluateSuspensions(c *gin.Context) {
	asOf, ok := s.asOfFromRequest(c)
	if !ok {
		return
	}
	resp, err := s.cycleSvc.EvaluateSubscriptionSuspensions(c.Request.Context(), asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}
