package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"expensetracker/internal/model"
)

// ExpenseRepository defines expense persistence operations.
// Update and Delete are scoped to the owner and report how many rows they touched.
type ExpenseRepository interface {
	Create(ctx context.Context, expense *model.Expense) error
	Update(ctx context.Context, expense *model.Expense) (int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Expense, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, filter model.ExpenseFilter) ([]model.Expense, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) (int64, error)
}

type expenseRepository struct {
	db *gorm.DB
}

// NewExpenseRepository creates a new expense repository.
func NewExpenseRepository(db *gorm.DB) ExpenseRepository {
	return &expenseRepository{db: db}
}

// Create inserts a new expense.
func (r *expenseRepository) Create(ctx context.Context, expense *model.Expense) error {
	return r.db.WithContext(ctx).Create(expense).Error
}

// Update writes the mutable columns of expense. The owner column is never written.
func (r *expenseRepository) Update(ctx context.Context, expense *model.Expense) (int64, error) {
	res := r.db.WithContext(ctx).Model(expense).
		Where("owner_id = ?", expense.OwnerID).
		Select("description", "amount", "category", "date", "updated_at").
		Updates(expense)
	return res.RowsAffected, res.Error
}

// FindByID finds an expense by ID regardless of owner.
func (r *expenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Expense, error) {
	var expense model.Expense
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&expense).Error; err != nil {
		return nil, err
	}
	return &expense, nil
}

// ListByOwner returns the owner's expenses, most recent date first, newest record first on ties.
func (r *expenseRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, filter model.ExpenseFilter) ([]model.Expense, error) {
	q := r.db.WithContext(ctx).Where("owner_id = ?", ownerID)
	if filter.Category != nil {
		q = q.Where("category = ?", *filter.Category)
	}

	expenses := make([]model.Expense, 0)
	if err := q.Order("date DESC").Order("created_at DESC").Find(&expenses).Error; err != nil {
		return nil, err
	}
	return expenses, nil
}

// Delete removes the expense if it belongs to ownerID.
func (r *expenseRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Delete(&model.Expense{})
	return res.RowsAffected, res.Error
}
