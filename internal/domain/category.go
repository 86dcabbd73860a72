package domain

import (
	"fmt"
	"strings"
	"time"
)

// ExpenseClass sub-classifies EXPENSE categories for derivation and reporting.
type ExpenseClass string

const (
	ClassNormal  ExpenseClass = "NORMAL"
	ClassSavings ExpenseClass = "SAVINGS"
	ClassInvest  ExpenseClass = "INVEST"
)

func (c ExpenseClass) Valid() bool {
	return c == ClassNormal || c == ClassSavings || c == ClassInvest
}

// Category groups transactions of one owner.
type Category struct {
	ID           int64           `json:"id"`
	OwnerID      int64           `json:"ownerId"`
	Kind         TransactionKind `json:"type"`
	ExpenseClass ExpenseClass    `json:"expenseClass"`
	Name         string          `json:"name"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// Normalize trims the name and forces INCOME categories (and unset classes)
// to NORMAL.
func (c *Category) Normalize() {
	c.Name = strings.TrimSpace(c.Name)
	if c.Kind != KindExpense || c.ExpenseClass == "" {
		c.ExpenseClass = ClassNormal
	}
}

func (c Category) Validate() error {
	if !c.Kind.Valid() {
		return fmt.Errorf("%w: category type %q", ErrInvalidInput, c.Kind)
	}
	if !c.ExpenseClass.Valid() {
		return fmt.Errorf("%w: expense class %q", ErrInvalidInput, c.ExpenseClass)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: category name is empty", ErrInvalidInput)
	}
	return nil
}

// Matches reports whether c is the category identified by the resolver tuple.
func (c Category) Matches(ownerID int64, kind TransactionKind, class ExpenseClass, name string) bool {
	return c.OwnerID == ownerID && c.Kind == kind && c.ExpenseClass == class && c.Name == name
}
