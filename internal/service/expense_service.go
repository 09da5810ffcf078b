package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"expensetracker/internal/cache"
	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/model"
	"expensetracker/internal/repository"
)

const (
	expenseCacheTTL = time.Minute
	userCacheTTL    = 5 * time.Minute
)

// ExpenseService performs expense operations on behalf of an authenticated owner.
// A record that is missing and a record owned by someone else are reported identically.
type ExpenseService interface {
	List(ctx context.Context, ownerID uuid.UUID, filter model.ExpenseFilter) ([]model.Expense, error)
	Get(ctx context.Context, ownerID, expenseID uuid.UUID) (*model.Expense, error)
	Create(ctx context.Context, ownerID uuid.UUID, input model.ExpenseInput) (*model.Expense, error)
	Update(ctx context.Context, ownerID, expenseID uuid.UUID, patch model.ExpensePatch) (*model.Expense, error)
	Delete(ctx context.Context, ownerID, expenseID uuid.UUID) error
	Summary(ctx context.Context, ownerID uuid.UUID, filter model.ExpenseFilter) (*model.Summary, error)
}

type expenseService struct {
	expenseRepo repository.ExpenseRepository
	userRepo    repository.UserRepository
	cache       *cache.Client
	logger      *slog.Logger
	now         func() time.Time
}

// NewExpenseService creates a new expense service. cache may be nil.
func NewExpenseService(
	expenseRepo repository.ExpenseRepository,
	userRepo repository.UserRepository,
	cache *cache.Client,
	logger *slog.Logger,
) ExpenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &expenseService{
		expenseRepo: expenseRepo,
		userRepo:    userRepo,
		cache:       cache,
		logger:      logger.With("component", "expense"),
		now:         time.Now,
	}
}

func (s *expenseService) expenseKey(id uuid.UUID) string {
	return fmt.Sprintf("expense:%s", id.String())
}

func (s *expenseService) userKey(id uuid.UUID) string {
	return fmt.Sprintf("user:%s:exists", id.String())
}

// List returns the owner's expenses, most recent first.
func (s *expenseService) List(ctx context.Context, ownerID uuid.UUID, filter model.ExpenseFilter) ([]model.Expense, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	expenses, err := s.expenseRepo.ListByOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, s.storeFailure(ctx, "list expenses", err)
	}
	return expenses, nil
}

// Get returns the expense if ownerID owns it.
func (s *expenseService) Get(ctx context.Context, ownerID, expenseID uuid.UUID) (*model.Expense, error) {
	var cached model.Expense
	if s.cache.GetJSON(ctx, s.expenseKey(expenseID), &cached) {
		if cached.OwnerID != ownerID {
			return nil, apperrors.ErrNotFoundOrUnauthorized
		}
		return &cached, nil
	}

	expense, err := s.findOwned(ctx, ownerID, expenseID)
	if err != nil {
		return nil, err
	}

	s.cache.SetJSON(ctx, s.expenseKey(expenseID), expense, expenseCacheTTL)
	return expense, nil
}

// Create validates input and stores a new expense owned by ownerID.
func (s *expenseService) Create(ctx context.Context, ownerID uuid.UUID, input model.ExpenseInput) (*model.Expense, error) {
	description, err := validateDescription(input.Description)
	if err != nil {
		return nil, err
	}
	amount, err := validateAmount(input.Amount)
	if err != nil {
		return nil, err
	}
	if err := validateCategory(input.Category); err != nil {
		return nil, err
	}

	if err := s.ensureOwnerExists(ctx, ownerID); err != nil {
		return nil, err
	}

	date := s.now()
	if input.Date != nil && !input.Date.IsZero() {
		date = *input.Date
	}

	expense := &model.Expense{
		ID:          uuid.New(),
		OwnerID:     ownerID,
		Description: description,
		Amount:      amount,
		Category:    input.Category,
		Date:        date.UTC(),
	}
	if err := s.expenseRepo.Create(ctx, expense); err != nil {
		return nil, s.storeFailure(ctx, "create expense", err)
	}

	s.logger.InfoContext(ctx, "expense created", "expense_id", expense.ID, "owner_id", ownerID)
	return expense, nil
}

// Update applies the present fields of patch. Each present field must pass Create's rules.
func (s *expenseService) Update(ctx context.Context, ownerID, expenseID uuid.UUID, patch model.ExpensePatch) (*model.Expense, error) {
	expense, err := s.findOwned(ctx, ownerID, expenseID)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return expense, nil
	}

	if patch.Description != nil {
		description, err := validateDescription(*patch.Description)
		if err != nil {
			return nil, err
		}
		expense.Description = description
	}
	if patch.Amount != nil {
		amount, err := validateAmount(*patch.Amount)
		if err != nil {
			return nil, err
		}
		expense.Amount = amount
	}
	if patch.Category != nil {
		if err := validateCategory(*patch.Category); err != nil {
			return nil, err
		}
		expense.Category = *patch.Category
	}
	if patch.Date != nil {
		if patch.Date.IsZero() {
			return nil, apperrors.NewValidationError("date", "must be a valid date")
		}
		expense.Date = patch.Date.UTC()
	}

	// a reader that loaded the old row may repopulate the key mid-write
	s.invalidate(ctx, expenseID)
	rows, err := s.expenseRepo.Update(ctx, expense)
	s.invalidate(ctx, expenseID)
	if err != nil {
		return nil, s.storeFailure(ctx, "update expense", err)
	}
	// deleted between the read and the write
	if rows == 0 {
		return nil, apperrors.ErrNotFoundOrUnauthorized
	}

	return expense, nil
}

// Delete removes the expense if ownerID owns it.
func (s *expenseService) Delete(ctx context.Context, ownerID, expenseID uuid.UUID) error {
	s.invalidate(ctx, expenseID)
	rows, err := s.expenseRepo.Delete(ctx, ownerID, expenseID)
	s.invalidate(ctx, expenseID)
	if err != nil {
		return s.storeFailure(ctx, "delete expense", err)
	}
	if rows == 0 {
		return apperrors.ErrNotFoundOrUnauthorized
	}

	s.logger.InfoContext(ctx, "expense deleted", "expense_id", expenseID, "owner_id", ownerID)
	return nil
}

// Summary totals the owner's expenses overall and per category.
func (s *expenseService) Summary(ctx context.Context, ownerID uuid.UUID, filter model.ExpenseFilter) (*model.Summary, error) {
	expenses, err := s.List(ctx, ownerID, filter)
	if err != nil {
		return nil, err
	}

	summary := &model.Summary{
		Total:      decimal.Zero,
		ByCategory: make(map[model.Category]decimal.Decimal),
	}
	for _, e := range expenses {
		summary.Total = summary.Total.Add(e.Amount)
		summary.ByCategory[e.Category] = summary.ByCategory[e.Category].Add(e.Amount)
		summary.Count++
	}
	return summary, nil
}

func (s *expenseService) findOwned(ctx context.Context, ownerID, expenseID uuid.UUID) (*model.Expense, error) {
	expense, err := s.expenseRepo.FindByID(ctx, expenseID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFoundOrUnauthorized
		}
		return nil, s.storeFailure(ctx, "find expense", err)
	}
	if expense.OwnerID != ownerID {
		return nil, apperrors.ErrNotFoundOrUnauthorized
	}
	return expense, nil
}

// ensureOwnerExists rejects tokens whose user no longer exists.
func (s *expenseService) ensureOwnerExists(ctx context.Context, ownerID uuid.UUID) error {
	if data, _ := s.cache.Get(ctx, s.userKey(ownerID)); data != nil {
		return nil
	}

	if _, err := s.userRepo.FindByID(ctx, ownerID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrUnauthenticated
		}
		return s.storeFailure(ctx, "find owner", err)
	}

	_ = s.cache.Set(ctx, s.userKey(ownerID), []byte("1"), userCacheTTL)
	return nil
}

func (s *expenseService) invalidate(ctx context.Context, expenseID uuid.UUID) {
	_ = s.cache.Delete(ctx, s.expenseKey(expenseID))
}

func (s *expenseService) storeFailure(ctx context.Context, op string, err error) error {
	s.logger.ErrorContext(ctx, "store failure", "operation", op, "error", err)
	return apperrors.NewStoreError(op, err)
}

func validateFilter(filter model.ExpenseFilter) error {
	if filter.Category != nil {
		return validateCategory(*filter.Category)
	}
	return nil
}
