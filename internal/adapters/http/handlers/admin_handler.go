package handlers

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"sangam-memberhub/internal/adapters/persistence/repositories"
	"sangam-memberhub/internal/core/services"
	"sangam-memberhub/internal/pkg/pagination"
	"sangam-memberhub/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler handles admin dashboard endpoints
type AdminHandler struct {
	statsService    *services.StatsService
	userService     *services.UserService
	transactionRepo *repositories.TransactionRepository
	exceptionRepo   *repositories.ReconciliationExceptionRepository
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	statsService *services.StatsService,
	userService *services.UserService,
	transactionRepo *repositories.TransactionRepository,
	exceptionRepo *repositories.ReconciliationExceptionRepository,
) *AdminHandler {
	return &AdminHandler{
		statsService:    statsService,
		userService:     userService,
		transactionRepo: transactionRepo,
		exceptionRepo:   exceptionRepo,
	}
}

// Stats returns aggregate dashboard figures
// @Summary Admin dashboard stats
// @Description Aggregate member and fund figures for the admin dashboard
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.statsService.GetAdminStats(c.Context())
	if err != nil {
		return response.InternalServerError(c, "Failed to compute stats")
	}

	return response.Success(c, "Stats computed", stats)
}

// Members lists members with their latest membership
// @Summary List members
// @Description Paginated member list enriched with membership details
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Router /admin/members [get]
func (h *AdminHandler) Members(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	members, total, err := h.userService.ListMembers(c.Context(), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list members")
	}

	return response.Success(c, "Members retrieved", pagination.NewResponse(members, params, total))
}

// ExportMembersCSV streams the member roster as CSV
// @Summary Export members CSV
// @Description Download all members with their latest membership as a CSV file
// @Tags Admin
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {string} string "CSV content"
// @Router /admin/members/export [get]
func (h *AdminHandler) ExportMembersCSV(c *fiber.Ctx) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write([]string{"id", "name", "email", "phone", "plan", "plan_amount", "membership_status", "start_date", "membership_id"})

	// Page through the roster so the export stays bounded per query
	const pageSize = 500
	for offset := 0; ; offset += pageSize {
		members, _, err := h.userService.ListMembers(c.Context(), offset, pageSize)
		if err != nil {
			return response.InternalServerError(c, "Failed to export members")
		}
		if len(members) == 0 {
			break
		}

		for _, m := range members {
			startDate := ""
			if m.StartDate != nil {
				startDate = *m.StartDate
			}
			membershipID := ""
			if m.MembershipID != 0 {
				membershipID = strconv.FormatUint(uint64(m.MembershipID), 10)
			}
			w.Write([]string{
				strconv.FormatUint(uint64(m.ID), 10),
				m.Name,
				m.Email,
				m.Phone,
				m.PlanName,
				strconv.FormatInt(m.PlanAmount, 10),
				m.MembershipStatus,
				startDate,
				membershipID,
			})
		}

		if len(members) < pageSize {
			break
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return response.InternalServerError(c, "Failed to export members")
	}

	filename := fmt.Sprintf("members_%s.csv", time.Now().Format("20060102_150405"))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(buf.Bytes())
}

// Transactions lists ledger entries across all members
// @Summary List transactions
// @Description Paginated payment ledger, newest first
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Router /admin/transactions [get]
func (h *AdminHandler) Transactions(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	txns, total, err := h.transactionRepo.List(c.Context(), params.Offset, params.Limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list transactions")
	}

	items := make([]interface{}, 0, len(txns))
	for _, txn := range txns {
		items = append(items, txn.ToResponse())
	}

	return response.Success(c, "Transactions retrieved", pagination.NewResponse(items, params, total))
}

// Exceptions lists unreviewed reconciliation exceptions
// @Summary List reconciliation exceptions
// @Description Unreviewed reconciliation exceptions awaiting manual review
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max rows"
// @Success 200 {object} response.Response
// @Router /admin/exceptions [get]
func (h *AdminHandler) Exceptions(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "100"))
	if limit < 1 || limit > 500 {
		limit = 100
	}

	exceptions, err := h.exceptionRepo.ListUnreviewed(c.Context(), limit)
	if err != nil {
		return response.InternalServerError(c, "Failed to list exceptions")
	}

	return response.Success(c, "Exceptions retrieved", fiber.Map{
		"exceptions": exceptions,
	})
}

// ExportTransactionsCSV streams the full ledger as CSV
// @Summary Export transactions CSV
// @Description Download the payment ledger as a CSV file
// @Tags Admin
// @Produce text/csv
// @Security BearerAuth
// @Success 200 {string} string "CSV content"
// @Router /admin/transactions/export [get]
func (h *AdminHandler) ExportTransactionsCSV(c *fiber.Ctx) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write([]string{"id", "date", "member_name", "member_email", "member_phone", "membership_id", "amount", "status", "payment_ref"})

	// Page through the ledger so the export stays bounded per query
	const pageSize = 500
	for offset := 0; ; offset += pageSize {
		txns, _, err := h.transactionRepo.List(c.Context(), offset, pageSize)
		if err != nil {
			return response.InternalServerError(c, "Failed to export transactions")
		}
		if len(txns) == 0 {
			break
		}

		for _, txn := range txns {
			r := txn.ToResponse()
			paymentRef := ""
			if r.PaymentRef != nil {
				paymentRef = *r.PaymentRef
			}
			w.Write([]string{
				strconv.FormatUint(uint64(r.ID), 10),
				r.CreatedAt.Format(time.RFC3339),
				r.UserName,
				r.UserEmail,
				r.UserPhone,
				strconv.FormatUint(uint64(r.MembershipID), 10),
				strconv.FormatInt(r.Amount, 10),
				r.Status,
				paymentRef,
			})
		}

		if len(txns) < pageSize {
			break
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return response.InternalServerError(c, "Failed to export transactions")
	}

	filename := fmt.Sprintf("transactions_%s.csv", time.Now().Format("20060102_150405"))
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Send(buf.Bytes())
}
