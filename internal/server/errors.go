package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/railzwaylabs/ispbilling/internal/billing/domain"
	customerdomain "github.com/railzwaylabs/ispbilling/internal/customer/domain"
	invoicedomain "github.com/railzwaylabs/ispbilling/internal/invoice/domain"
	ledger "github.com/railzwaylabs/ispbilling/internal/ledger/domain"
	productdomain "github.com/railzwaylabs/ispbilling/internal/product/domain"
	routerdomain "github.com/railzwaylabs/ispbilling/internal/router/domain"
	subscriptiondomain "github.com/railzwaylabs/ispbilling/internal/subscription/domain"
	"github.com/railzwaylabs/ispbilling/pkg/validation"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")

	errDBNotConfigured = errors.New("database not configured")
)

type ErrorBody struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

func invalidRequestError() error {
	return ErrInvalidRequest
}

func newValidationError(field, code, message string) error {
	return validation.Field(field, code, message)
}

var statusBySentinel = []struct {
	err    error
	status int
}{
	{subscriptiondomain.ErrNotFound, http.StatusNotFound},
	{customerdomain.ErrNotFound, http.StatusNotFound},
	{customerdomain.ErrZoneNotFound, http.StatusNotFound},
	{productdomain.ErrNotFound, http.StatusNotFound},
	{routerdomain.ErrNotFound, http.StatusNotFound},
	{billingdomain.ErrBillNotFound, http.StatusNotFound},
	{invoicedomain.ErrInvoiceNotFound, http.StatusNotFound},
	{invoicedomain.ErrDiscountNotFound, http.StatusNotFound},
	{invoicedomain.ErrRefundNotFound, http.StatusNotFound},

	{subscriptiondomain.ErrActiveSubscriptionExists, http.StatusConflict},
	{subscriptiondomain.ErrUsernameTaken, http.StatusConflict},
	{subscriptiondomain.ErrInvalidTransition, http.StatusConflict},
	{subscriptiondomain.ErrAlreadySuspended, http.StatusConflict},
	{subscriptiondomain.ErrAlreadyActive, http.StatusConflict},
	{subscriptiondomain.ErrPackageInUseOnRouter, http.StatusConflict},
	{customerdomain.ErrZoneExists, http.StatusConflict},
	{customerdomain.ErrInvalidTransition, http.StatusConflict},
	{productdomain.ErrNameTaken, http.StatusConflict},
	{productdomain.ErrInUse, http.StatusConflict},
	{routerdomain.ErrNameTaken, http.StatusConflict},
	{billingdomain.ErrBillExists, http.StatusConflict},
	{billingdomain.ErrBillCancelled, http.StatusConflict},
	{billingdomain.ErrBillSettled, http.StatusConflict},
	{billingdomain.ErrBillHasPayments, http.StatusConflict},
	{invoicedomain.ErrInvoiceForCancelledBill, http.StatusConflict},
	{invoicedomain.ErrInvalidRefundState, http.StatusConflict},

	{subscriptiondomain.ErrProvisioningFailed, http.StatusBadGateway},

	{validation.ErrValidation, http.StatusBadRequest},
	{ErrInvalidRequest, http.StatusBadRequest},
	{customerdomain.ErrInvalidRequest, http.StatusBadRequest},
	{ledger.ErrInvalidAmount, http.StatusBadRequest},
	{ledger.ErrAmountNotPositive, http.StatusBadRequest},
	{ledger.ErrNegativeComponent, http.StatusBadRequest},
	{ledger.ErrInvalidDiscountType, http.StatusBadRequest},
	{ledger.ErrAmountTooPrecise, http.StatusBadRequest},
	{ledger.ErrInvalidDiscountValue, http.StatusBadRequest},
	{productdomain.ErrInvalidPrice, http.StatusBadRequest},
	{invoicedomain.ErrInvalidDiscountPeriod, http.StatusBadRequest},

	{ledger.ErrAmountExceedsDue, http.StatusUnprocessableEntity},
	{ledger.ErrDiscountTooLarge, http.StatusUnprocessableEntity},
	{ledger.ErrInsufficientAdvance, http.StatusUnprocessableEntity},
	{subscriptiondomain.ErrNoRouter, http.StatusUnprocessableEntity},
	{productdomain.ErrInactive, http.StatusUnprocessableEntity},
	{routerdomain.ErrInactive, http.StatusUnprocessableEntity},
	{billingdomain.ErrSubscriptionInactive, http.StatusUnprocessableEntity},
	{billingdomain.ErrDiscountUnavailable, http.StatusUnprocessableEntity},
	{invoicedomain.ErrRefundExceedsBalance, http.StatusUnprocessableEntity},
}

func statusFor(err error) (int, error) {
	for _, m := range statusBySentinel {
		if errors.Is(err, m.err) {
			return m.status, m.err
		}
	}
	return http.StatusInternalServerError, ErrInternal
}

// AbortWithError writes the error envelope for err and stops the chain.
// Unmapped errors are logged by the access log and reported as internal_error.
func AbortWithError(c *gin.Context, err error) {
	status, sentinel := statusFor(err)
	body := ErrorBody{Code: sentinel.Error(), Message: err.Error()}

	var verr *validation.Error
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	if status == http.StatusInternalServerError {
		body.Message = "internal error"
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: body})
}
