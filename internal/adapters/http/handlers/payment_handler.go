package handlers

import (
	"crypto/subtle"
	"errors"
	"strings"

	"sangam-memberhub/internal/adapters/http/middleware"
	"sangam-memberhub/internal/config"
	"sangam-memberhub/internal/core/domain"
	"sangam-memberhub/internal/core/services"
	"sangam-memberhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// PaymentHandler handles payment history and gateway webhook endpoints
type PaymentHandler struct {
	reconciliationService *services.ReconciliationService
	cfg                   *config.Config
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(reconciliationService *services.ReconciliationService, cfg *config.Config) *PaymentHandler {
	return &PaymentHandler{
		reconciliationService: reconciliationService,
		cfg:                   cfg,
	}
}

// WebhookRequest represents a recurring charge pushed by the gateway
type WebhookRequest struct {
	OrderRef   string `json:"order_ref"`
	PaymentRef string `json:"payment_ref"`
	Amount     int64  `json:"amount"` // paise
}

// History lists the caller's payment ledger entries
// @Summary Payment history
// @Description List the caller's ledger entries, newest first
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /payments/history [get]
func (h *PaymentHandler) History(c *fiber.Ctx) error {
	principal, ok := middleware.Principal(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	txns, err := h.reconciliationService.PaymentHistory(c.Context(), principal)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch payment history")
	}

	items := make([]interface{}, 0, len(txns))
	for _, txn := range txns {
		items = append(items, txn.ToResponse())
	}

	return response.Success(c, "Payment history retrieved", fiber.Map{
		"transactions": items,
	})
}

// Webhook records a recurring charge pushed by the gateway
// @Summary Gateway webhook
// @Description Record a recurring charge event from the payment gateway
// @Tags Payments
// @Accept json
// @Produce json
// @Success 200 {object} response.Response
// @Failure 401 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /payments/webhook [post]
func (h *PaymentHandler) Webhook(c *fiber.Ctx) error {
	secret := h.cfg.Razorpay.WebhookSecret
	provided := c.Get("X-Webhook-Secret")
	if secret == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(secret)) != 1 {
		return response.Unauthorized(c, "Invalid webhook secret")
	}

	var req WebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.OrderRef) == "" || strings.TrimSpace(req.PaymentRef) == "" {
		return response.BadRequest(c, "order_ref and payment_ref are required")
	}
	if req.Amount <= 0 {
		return response.BadRequest(c, "amount must be positive")
	}

	txn, err := h.reconciliationService.RecordRecurringCharge(
		c.Context(),
		strings.TrimSpace(req.OrderRef),
		strings.TrimSpace(req.PaymentRef),
		req.Amount,
	)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrReconciliation):
			// The event is durably flagged for manual review; respond 409 so
			// the gateway's retry policy does not hammer a permanent mismatch.
			return response.Conflict(c, "Charge could not be reconciled; flagged for manual review")
		default:
			return response.InternalServerError(c, "Failed to record charge")
		}
	}

	return response.Success(c, "Charge recorded", fiber.Map{
		"transaction": txn.ToResponse(),
	})
}
