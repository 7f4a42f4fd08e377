package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	invoicedomain "github.com/railzwaylabs/ispbilling/internal/invoice/domain"
)

func (s *Server) IssueInvoice(c *gin.Context) {
	billID, ok := pathID(c)
	if !ok {
		return
	}
	resp, err := s.invoiceSvc.IssueInvoice(c.Request.Context(), billID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, resp)
}

// ExplainInvoice handles GET /invoices/:id/explanation
func (s *Server) ExplainInvoice(c *gin.Context) {
	invoiceID, ok := pathID(c)
	if !ok {
		return
	}
	explanation, err := s.invoiceSvc.Explain(c.Request.Context(), invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, explanation)
}

func (s *Server) DownloadInvoicePDF(c *gin.Context) {
	invoiceID, ok := pathID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	invoice, err := s.invoiceSvc.GetInvoice(ctx, invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	pdf, err := s.invoiceSvc.RenderPDF(ctx, invoiceID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", invoice.InvoiceNumber+".pdf"))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

func (s *Server) CreateDiscount(c *gin.Context) {
	var req invoicedomain.CreateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.Name = strings.TrimSpace(req.Name)

	resp, err := s.invoiceSvc.CreateDiscount(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, resp)
}

func (s *Server) RequestRefund(c *gin.Context) {
	var req invoicedomain.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	resp, err := s.invoiceSvc.RequestRefund(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondCreated(c, resp)
}

type refundDecisionRequest struct {
	Notes  string `json:"approval_notes"`
	Reason string `json:"rejection_reason"`
}

func (s *Server) ApproveRefund(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req refundDecisionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	resp, err := s.invoiceSvc.ApproveRefund(c.Request.Context(), id, req.Notes)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

func (s *Server) RejectRefund(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req refundDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	resp, err := s.invoiceSvc.RejectRefund(c.Request.Context(), id, req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}

func (s *Server) CompleteRefund(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req invoicedomain.CompleteRefundRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	req.ID = id
	resp, err := s.invoiceSvc.CompleteRefund(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	respondData(c, resp)
}
