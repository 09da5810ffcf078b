package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Expense is a single spending record. OwnerID is set once at creation.
type Expense struct {
	ID          uuid.UUID       `json:"id" gorm:"type:char(36);primaryKey"`
	OwnerID     uuid.UUID       `json:"owner_id" gorm:"type:char(36);not null;index:idx_expenses_owner_date,priority:1"`
	Description string          `json:"description" gorm:"size:255;not null"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(12,2);not null"`
	Category    Category        `json:"category" gorm:"type:varchar(32);not null;index"`
	Date        time.Time       `json:"date" gorm:"not null;index:idx_expenses_owner_date,priority:2"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// BeforeCreate sets UUID before creating the record.
func (e *Expense) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// ExpenseInput carries the fields of a new expense. A nil Date means now.
type ExpenseInput struct {
	Description string
	Amount      decimal.Decimal
	Category    Category
	Date        *time.Time
}

// ExpensePatch lists the fields an update changes. Nil fields are left as they are.
type ExpensePatch struct {
	Description *string
	Amount      *decimal.Decimal
	Category    *Category
	Date        *time.Time
}

// Empty reports whether the patch changes nothing.
func (p ExpensePatch) Empty() bool {
	return p.Description == nil && p.Amount == nil && p.Category == nil && p.Date == nil
}

// ExpenseFilter narrows List and Summary. The zero value matches everything.
type ExpenseFilter struct {
	Category *Category
}

// Summary is the aggregate of an owner's expenses.
type Summary struct {
	Total      decimal.Decimal              `json:"total"`
	Count      int                          `json:"count"`
	ByCategory map[Category]decimal.Decimal `json:"by_category"`
}
