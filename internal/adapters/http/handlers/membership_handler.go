package handlers

import (
	"errors"
	"strconv"
	"strings"

	"sangam-memberhub/internal/adapters/http/middleware"
	"sangam-memberhub/internal/core/domain"
	"sangam-memberhub/internal/core/services"
	"sangam-memberhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// MembershipHandler handles membership lifecycle endpoints
type MembershipHandler struct {
	membershipService     *services.MembershipService
	reconciliationService *services.ReconciliationService
}

// NewMembershipHandler creates a new membership handler
func NewMembershipHandler(
	membershipService *services.MembershipService,
	reconciliationService *services.ReconciliationService,
) *MembershipHandler {
	return &MembershipHandler{
		membershipService:     membershipService,
		reconciliationService: reconciliationService,
	}
}

// SelectPlanRequest represents plan selection request body
type SelectPlanRequest struct {
	PlanName   string `json:"plan_name"`
	PlanAmount int64  `json:"plan_amount"`
}

// ConfirmRequest represents payment confirmation request body
type ConfirmRequest struct {
	PaymentRef string `json:"payment_ref"`
}

// FailureRequest represents a reported checkout failure
type FailureRequest struct {
	Reason string `json:"reason"`
}

// SelectPlan handles plan selection
// @Summary Select a membership plan
// @Description Create a pending membership for the chosen plan
// @Tags Membership
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body SelectPlanRequest true "Plan selection"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /memberships [post]
func (h *MembershipHandler) SelectPlan(c *fiber.Ctx) error {
	principal, ok := middleware.Principal(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	var req SelectPlanRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	input := &services.SelectPlanInput{
		PlanName:   strings.TrimSpace(req.PlanName),
		PlanAmount: req.PlanAmount,
	}

	membership, err := h.membershipService.SelectPlan(c.Context(), principal, input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Plan name and a positive amount are required")
		case errors.Is(err, domain.ErrConflict):
			return response.Conflict(c, "A membership is already pending or active")
		default:
			return response.InternalServerError(c, "Failed to select plan")
		}
	}

	return response.Created(c, "Plan selected", fiber.Map{
		"membership": membership,
	})
}

// GetCurrent returns the caller's current membership
// @Summary Get current membership
// @Description Get the caller's pending or active membership, if any
// @Tags Membership
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /memberships/current [get]
func (h *MembershipHandler) GetCurrent(c *fiber.Ctx) error {
	principal, ok := middleware.Principal(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	membership, err := h.membershipService.GetCurrent(c.Context(), principal)
	if err != nil {
		return response.InternalServerError(c, "Failed to fetch membership")
	}

	return response.Success(c, "Membership retrieved", fiber.Map{
		"membership": membership,
	})
}

// Checkout initiates a gateway charge for a pending membership
// @Summary Initiate checkout
// @Description Create a gateway order for the pending membership and return charge parameters
// @Tags Membership
// @Produce json
// @Security BearerAuth
// @Param id path int true "Membership ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /memberships/{id}/checkout [post]
func (h *MembershipHandler) Checkout(c *fiber.Ctx) error {
	principal, ok := middleware.Principal(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	membershipID, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid membership ID")
	}

	params, err := h.reconciliationService.InitiateCharge(c.Context(), principal, membershipID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return response.NotFound(c, "Membership not found")
		case errors.Is(err, domain.ErrForbidden):
			return response.Forbidden(c, "Membership belongs to another member")
		case errors.Is(err, domain.ErrInvalidState):
			return response.UnprocessableEntity(c, "Membership is not awaiting payment")
		case errors.Is(err, domain.ErrGatewayUnavailable):
			return response.ServiceUnavailable(c, "Payment gateway unavailable, please retry")
		default:
			return response.InternalServerError(c, "Failed to initiate checkout")
		}
	}

	return response.Success(c, "Checkout initiated", fiber.Map{
		"charge": params,
	})
}

// Confirm reconciles a payment confirmation
// @Summary Confirm payment
// @Description Confirm a gateway payment and activate the membership
// @Tags Membership
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Membership ID"
// @Param body body ConfirmRequest true "Payment reference"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 409 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /memberships/{id}/confirm [post]
func (h *MembershipHandler) Confirm(c *fiber.Ctx) error {
	principal, ok := middleware.Principal(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	membershipID, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid membership ID")
	}

	var req ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	txn, err := h.reconciliationService.Confirm(c.Context(), principal, membershipID, strings.TrimSpace(req.PaymentRef))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return response.BadRequest(c, "Payment reference is required")
		case errors.Is(err, domain.ErrNotFound):
			return response.NotFound(c, "Membership not found")
		case errors.Is(err, domain.ErrForbidden):
			return response.Forbidden(c, "Membership belongs to another member")
		case errors.Is(err, domain.ErrReconciliation):
			return response.Conflict(c, "Payment could not be reconciled; flagged for manual review")
		case errors.Is(err, domain.ErrInvalidState):
			return response.UnprocessableEntity(c, "Membership is not awaiting payment")
		default:
			return response.InternalServerError(c, "Failed to confirm payment")
		}
	}

	return response.Success(c, "Payment confirmed", fiber.Map{
		"transaction": txn.ToResponse(),
	})
}

// RecordFailure records a failed checkout attempt
// @Summary Record payment failure
// @Description Append a failed ledger entry for a pending membership
// @Tags Membership
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Membership ID"
// @Param body body FailureRequest true "Failure reason"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /memberships/{id}/failure [post]
func (h *MembershipHandler) RecordFailure(c *fiber.Ctx) error {
	principal, ok := middleware.Principal(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	membershipID, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid membership ID")
	}

	var req FailureRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	txn, err := h.reconciliationService.RecordFailure(c.Context(), principal, membershipID, strings.TrimSpace(req.Reason))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return response.NotFound(c, "Membership not found")
		case errors.Is(err, domain.ErrForbidden):
			return response.Forbidden(c, "Membership belongs to another member")
		case errors.Is(err, domain.ErrInvalidState):
			return response.UnprocessableEntity(c, "Membership is not awaiting payment")
		default:
			return response.InternalServerError(c, "Failed to record failure")
		}
	}

	return response.Success(c, "Failure recorded", fiber.Map{
		"transaction": txn.ToResponse(),
	})
}

// Cancel cancels an active membership
// @Summary Cancel membership
// @Description Transition an active membership to cancelled
// @Tags Membership
// @Produce json
// @Security BearerAuth
// @Param id path int true "Membership ID"
// @Success 200 {object} response.Response
// @Failure 403 {object} response.Response
// @Failure 404 {object} response.Response
// @Failure 422 {object} response.Response
// @Router /memberships/{id} [delete]
func (h *MembershipHandler) Cancel(c *fiber.Ctx) error {
	principal, ok := middleware.Principal(c)
	if !ok {
		return response.Unauthorized(c, "Unauthorized")
	}

	membershipID, err := parseIDParam(c)
	if err != nil {
		return response.BadRequest(c, "Invalid membership ID")
	}

	membership, err := h.membershipService.Cancel(c.Context(), principal, membershipID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return response.NotFound(c, "Membership not found")
		case errors.Is(err, domain.ErrForbidden):
			return response.Forbidden(c, "Membership belongs to another member")
		case errors.Is(err, domain.ErrInvalidState):
			return response.UnprocessableEntity(c, "Only an active membership can be cancelled")
		default:
			return response.InternalServerError(c, "Failed to cancel membership")
		}
	}

	return response.Success(c, "Membership cancelled", fiber.Map{
		"membership": membership,
	})
}

// parseIDParam parses the :id path parameter
func parseIDParam(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}
