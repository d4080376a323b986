package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "spaceremit/internal/errors"
	"spaceremit/internal/model"
	"spaceremit/internal/repository"
	"spaceremit/internal/service"
)

// AdminHandler handles the operator API: transaction browsing, manual
// rechecks, stats, and gateway connectivity probes.
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// TransactionListResponse is a paginated transaction listing.
type TransactionListResponse struct {
	Transactions []model.Transaction `json:"transactions"`
	Total        int64               `json:"total"`
	Page         int                 `json:"page"`
	PerPage      int                 `json:"per_page"`
}

// ListTransactions godoc
// @Summary List transactions
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "Internal status filter"
// @Param search query string false "Payment ID or customer email"
// @Param from query string false "RFC3339 lower bound on created_at"
// @Param to query string false "RFC3339 upper bound on created_at"
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Success 200 {object} TransactionListResponse
// @Failure 401 {object} errors.ErrorResponse
// @Router /admin/transactions [get]
func (h *AdminHandler) ListTransactions(c echo.Context) error {
	filter := repository.TransactionFilter{
		Status: model.InternalStatus(c.QueryParam("status")),
		Search: c.QueryParam("search"),
	}
	if from, err := time.Parse(time.RFC3339, c.QueryParam("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(time.RFC3339, c.QueryParam("to")); err == nil {
		filter.To = &to
	}
	filter.Page, _ = strconv.Atoi(c.QueryParam("page"))
	filter.PerPage, _ = strconv.Atoi(c.QueryParam("per_page"))
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage < 1 {
		filter.PerPage = 20
	}

	txs, total, err := h.adminService.ListTransactions(c.Request().Context(), filter)
	if err != nil {
		httpErr := apperrors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}

	return c.JSON(http.StatusOK, TransactionListResponse{
		Transactions: txs,
		Total:        total,
		Page:         filter.Page,
		PerPage:      filter.PerPage,
	})
}

// GetTransaction godoc
// @Summary Get one transaction with its last gateway payload
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Success 200 {object} model.Transaction
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/transactions/{id} [get]
func (h *AdminHandler) GetTransaction(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, apperrors.ErrorResponse{
			Error: "invalid transaction id",
			Code:  "INVALID_ID",
		})
	}

	tx, err := h.adminService.GetTransaction(c.Request().Context(), id)
	if err != nil {
		httpErr := apperrors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, tx)
}

// RecheckTransaction godoc
// @Summary Re-verify a payment and reconcile its order
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction ID"
// @Success 200 {object} service.Outcome
// @Failure 404 {object} errors.ErrorResponse
// @Router /admin/transactions/{id}/recheck [post]
func (h *AdminHandler) RecheckTransaction(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, apperrors.ErrorResponse{
			Error: "invalid transaction id",
			Code:  "INVALID_ID",
		})
	}

	outcome, err := h.adminService.RecheckTransaction(c.Request().Context(), id)
	if err != nil {
		httpErr := apperrors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, outcome)
}

// Stats godoc
// @Summary Transaction counts by status
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int64
// @Router /admin/stats [get]
func (h *AdminHandler) Stats(c echo.Context) error {
	counts, err := h.adminService.Stats(c.Request().Context())
	if err != nil {
		httpErr := apperrors.MapErrorToHTTP(err)
		return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
	}
	return c.JSON(http.StatusOK, counts)
}

// TestConnection godoc
// @Summary Probe the SpaceRemit API in the configured mode
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string
// @Failure 502 {object} errors.ErrorResponse
// @Router /admin/test-connection [post]
func (h *AdminHandler) TestConnection(c echo.Context) error {
	if err := h.adminService.TestConnection(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, apperrors.ErrorResponse{
			Error:   "connection failed",
			Message: err.Error(),
			Code:    "GATEWAY_UNREACHABLE",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "connection successful"})
}
