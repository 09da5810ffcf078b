package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"expensetracker/internal/errors"
	"expensetracker/internal/model"
	"expensetracker/internal/service"
)

// ExpenseHandler handles expense endpoints. Every route acts on the caller's own records.
type ExpenseHandler struct {
	expenseService service.ExpenseService
}

// NewExpenseHandler creates a new expense handler.
func NewExpenseHandler(expenseService service.ExpenseService) *ExpenseHandler {
	return &ExpenseHandler{expenseService: expenseService}
}

// Date accepts "2006-01-02" as well as RFC 3339 timestamps.
type Date struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return errors.NewValidationError("date", "must be YYYY-MM-DD or RFC 3339")
}

// CreateExpenseRequest represents a new expense.
type CreateExpenseRequest struct {
	Description string          `json:"description" validate:"required"`
	Amount      decimal.Decimal `json:"amount" swaggertype:"number" example:"3.50"`
	Category    string          `json:"category" validate:"required" example:"Food"`
	Date        *Date           `json:"date,omitempty" swaggertype:"string" example:"2024-05-01"`
}

// UpdateExpenseRequest lists the fields to change. Omitted fields keep their value.
type UpdateExpenseRequest struct {
	Description *string          `json:"description,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty" swaggertype:"number"`
	Category    *string          `json:"category,omitempty"`
	Date        *Date            `json:"date,omitempty" swaggertype:"string"`
}

// MessageResponse carries a plain confirmation.
type MessageResponse struct {
	Message string `json:"message"`
}

// ListExpenses godoc
// @Summary List the caller's expenses
// @Description Most recent first. Optionally restricted to one category.
// @Tags expenses
// @Produce json
// @Security BearerAuth
// @Param category query string false "Category filter"
// @Success 200 {array} model.Expense
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /expenses [get]
func (h *ExpenseHandler) ListExpenses(c echo.Context) error {
	ownerID, err := CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}
	filter, err := parseFilter(c)
	if err != nil {
		return httpError(err)
	}

	expenses, err := h.expenseService.List(c.Request().Context(), ownerID, filter)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, expenses)
}

// CreateExpense godoc
// @Summary Create an expense
// @Tags expenses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateExpenseRequest true "Expense data"
// @Success 201 {object} model.Expense
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /expenses [post]
func (h *ExpenseHandler) CreateExpense(c echo.Context) error {
	ownerID, err := CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}

	var req CreateExpenseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	input := model.ExpenseInput{
		Description: req.Description,
		Amount:      req.Amount,
		Category:    model.Category(strings.TrimSpace(req.Category)),
	}
	if req.Date != nil && !req.Date.IsZero() {
		input.Date = &req.Date.Time
	}

	expense, err := h.expenseService.Create(c.Request().Context(), ownerID, input)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, expense)
}

// GetExpense godoc
// @Summary Get one expense
// @Tags expenses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Expense ID"
// @Success 200 {object} model.Expense
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /expenses/{id} [get]
func (h *ExpenseHandler) GetExpense(c echo.Context) error {
	ownerID, expenseID, err := ownerAndExpenseID(c)
	if err != nil {
		return httpError(err)
	}

	expense, err := h.expenseService.Get(c.Request().Context(), ownerID, expenseID)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, expense)
}

// UpdateExpense godoc
// @Summary Update an expense
// @Description Only the fields present in the body are changed.
// @Tags expenses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Expense ID"
// @Param request body UpdateExpenseRequest true "Fields to change"
// @Success 200 {object} model.Expense
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /expenses/{id} [put]
// @Router /expenses/{id} [patch]
func (h *ExpenseHandler) UpdateExpense(c echo.Context) error {
	ownerID, expenseID, err := ownerAndExpenseID(c)
	if err != nil {
		return httpError(err)
	}

	var req UpdateExpenseRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	patch := model.ExpensePatch{
		Description: req.Description,
		Amount:      req.Amount,
	}
	if req.Category != nil {
		category := model.Category(strings.TrimSpace(*req.Category))
		patch.Category = &category
	}
	if req.Date != nil {
		patch.Date = &req.Date.Time
	}

	expense, err := h.expenseService.Update(c.Request().Context(), ownerID, expenseID, patch)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, expense)
}

// DeleteExpense godoc
// @Summary Delete an expense
// @Tags expenses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Expense ID"
// @Success 200 {object} MessageResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /expenses/{id} [delete]
func (h *ExpenseHandler) DeleteExpense(c echo.Context) error {
	ownerID, expenseID, err := ownerAndExpenseID(c)
	if err != nil {
		return httpError(err)
	}

	if err := h.expenseService.Delete(c.Request().Context(), ownerID, expenseID); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, MessageResponse{Message: "expense deleted"})
}

// Summary godoc
// @Summary Totals of the caller's expenses
// @Tags expenses
// @Produce json
// @Security BearerAuth
// @Param category query string false "Category filter"
// @Success 200 {object} model.Summary
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /expenses/summary [get]
func (h *ExpenseHandler) Summary(c echo.Context) error {
	ownerID, err := CurrentUserID(c)
	if err != nil {
		return httpError(err)
	}
	filter, err := parseFilter(c)
	if err != nil {
		return httpError(err)
	}

	summary, err := h.expenseService.Summary(c.Request().Context(), ownerID, filter)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, summary)
}

// ListCategories godoc
// @Summary List the accepted categories
// @Tags expenses
// @Produce json
// @Success 200 {array} string
// @Router /categories [get]
func (h *ExpenseHandler) ListCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, model.Categories())
}

func parseFilter(c echo.Context) (model.ExpenseFilter, error) {
	raw := c.QueryParam("category")
	if raw == "" {
		return model.ExpenseFilter{}, nil
	}
	category, ok := model.ParseCategory(raw)
	if !ok {
		return model.ExpenseFilter{}, errors.NewValidationError("category", "unknown category "+raw)
	}
	return model.ExpenseFilter{Category: &category}, nil
}

// ownerAndExpenseID treats an unparsable id like a missing record.
func ownerAndExpenseID(c echo.Context) (uuid.UUID, uuid.UUID, error) {
	ownerID, err := CurrentUserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.ErrNotFoundOrUnauthorized
	}
	return ownerID, expenseID, nil
}
