package service

import (
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	apperrors "expensetracker/internal/errors"
	"expensetracker/internal/model"
)

const maxDescriptionLength = 255

// maxAmount is the first value that no longer fits decimal(12,2).
var maxAmount = decimal.New(1, 10)

func validateDescription(description string) (string, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return "", apperrors.NewValidationError("description", "must not be empty")
	}
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return "", apperrors.NewValidationError("description", "must be at most 255 characters")
	}
	return description, nil
}

// validateAmount rounds to cents before checking, so 0.001 is rejected.
func validateAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return decimal.Zero, apperrors.NewValidationError("amount", "must be greater than 0")
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, apperrors.NewValidationError("amount", "is too large")
	}
	return amount, nil
}

func validateCategory(category model.Category) error {
	if !category.Valid() {
		return apperrors.NewValidationError("category", "must be one of Food, Transport, Utilities, Entertainment, Shopping, Health, Education, Salary, Other")
	}
	return nil
}
