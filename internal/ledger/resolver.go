package ledger

import (
	"time"

	"github.com/dvloznov/household-ledger/internal/collection"
	"github.com/dvloznov/household-ledger/internal/domain"
)

// resolveCategory finds the owner's category matching (kind, class, name) or
// appends a new one to the working set. Existing categories are never changed.
// Only the derivation path creates categories this way.
func (s *snapshot) resolveCategory(ownerID int64, kind domain.TransactionKind, class domain.ExpenseClass, name string, now time.Time) domain.Category {
	if kind != domain.KindExpense {
		class = domain.ClassNormal
	}
	for _, c := range s.categories {
		if c.Matches(ownerID, kind, class, name) {
			return c
		}
	}

	c := domain.Category{
		ID:           s.nextCategoryID(ownerID),
		OwnerID:      ownerID,
		Kind:         kind,
		ExpenseClass: class,
		Name:         name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.categories = append(s.categories, c)
	s.touch(collection.Categories)
	return c
}

// findCategory returns the index of an owner category with the same identity
// tuple, skipping exceptID.
func (s *snapshot) findCategory(c domain.Category, exceptID int64) int {
	for i, existing := range s.categories {
		if existing.ID == exceptID {
			continue
		}
		if existing.Matches(c.OwnerID, c.Kind, c.ExpenseClass, c.Name) {
			return i
		}
	}
	return -1
}
