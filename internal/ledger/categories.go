package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/dvloznov/household-ledger/internal/collection"
	"github.com/dvloznov/household-ledger/internal/domain"
)

// CategoryInput describes a category to create or the new values of one.
type CategoryInput struct {
	Kind         domain.TransactionKind `json:"type"`
	ExpenseClass domain.ExpenseClass    `json:"expenseClass,omitempty"`
	Name         string                 `json:"name"`
}

// CreateCategory adds a category. A category with the same (type, name,
// expense class) for the owner is rejected with ErrDuplicateCategory.
func (l *Ledger) CreateCategory(ctx context.Context, ownerID int64, in CategoryInput) (domain.Category, error) {
	if err := l.lockWrite(ctx); err != nil {
		return domain.Category{}, fmt.Errorf("CreateCategory: %w", err)
	}
	defer l.unlockWrite(ctx)

	s, err := l.load(ctx, collection.Users, collection.Categories)
	if err != nil {
		return domain.Category{}, fmt.Errorf("CreateCategory: %w", err)
	}
	if err := s.requireOwner(ownerID); err != nil {
		return domain.Category{}, fmt.Errorf("CreateCategory: %w", err)
	}

	now := l.now()
	c := domain.Category{
		OwnerID:      ownerID,
		Kind:         in.Kind,
		ExpenseClass: in.ExpenseClass,
		Name:         in.Name,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	c.Normalize()
	if err := c.Validate(); err != nil {
		return domain.Category{}, fmt.Errorf("CreateCategory: %w", err)
	}
	if s.findCategory(c, 0) >= 0 {
		return domain.Category{}, fmt.Errorf("CreateCategory: %w: %s/%s/%s", domain.ErrDuplicateCategory, c.Kind, c.ExpenseClass, c.Name)
	}

	c.ID = s.nextCategoryID(ownerID)
	s.categories = append(s.categories, c)
	s.touch(collection.Categories)
	if err := l.commit(ctx, s, "CreateCategory", ownerID); err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

// UpdateCategory renames or reclassifies a category. The kind cannot change
// while any transaction is filed under the category, and neither kind nor
// expense class can change while it backs a derived transaction
// (ErrCategoryInUse).
func (l *Ledger) UpdateCategory(ctx context.Context, ownerID, categoryID int64, in CategoryInput) (domain.Category, error) {
	if err := l.lockWrite(ctx); err != nil {
		return domain.Category{}, fmt.Errorf("UpdateCategory: %w", err)
	}
	defer l.unlockWrite(ctx)

	s, err := l.load(ctx, collection.Categories, collection.Transactions)
	if err != nil {
		return domain.Category{}, fmt.Errorf("UpdateCategory: %w", err)
	}
	ci := s.categoryIndex(ownerID, categoryID)
	if ci < 0 {
		return domain.Category{}, fmt.Errorf("UpdateCategory: %w: %d", domain.ErrCategoryNotFound, categoryID)
	}

	c := s.categories[ci]
	c.Kind = in.Kind
	c.ExpenseClass = in.ExpenseClass
	c.Name = in.Name
	c.Normalize()
	if err := c.Validate(); err != nil {
		return domain.Category{}, fmt.Errorf("UpdateCategory: %w", err)
	}
	if s.findCategory(c, c.ID) >= 0 {
		return domain.Category{}, fmt.Errorf("UpdateCategory: %w: %s/%s/%s", domain.ErrDuplicateCategory, c.Kind, c.ExpenseClass, c.Name)
	}
	prev := s.categories[ci]
	if c.Kind != prev.Kind || c.ExpenseClass != prev.ExpenseClass {
		for _, t := range s.transactions {
			if t.OwnerID != ownerID || t.CategoryID != categoryID {
				continue
			}
			if t.IsDerived() || c.Kind != prev.Kind {
				return domain.Category{}, fmt.Errorf("UpdateCategory: %w: transaction %d", domain.ErrCategoryInUse, t.ID)
			}
		}
	}
	c.UpdatedAt = l.now()
	s.categories[ci] = c
	s.touch(collection.Categories)

	if err := l.commit(ctx, s, "UpdateCategory", ownerID); err != nil {
		return domain.Category{}, err
	}
	return c, nil
}

// DeleteCategory removes a category and every manual transaction filed under
// it. Categories backing a derived transaction cannot be deleted
// (ErrCategoryInUse): removing them would orphan the record links.
func (l *Ledger) DeleteCategory(ctx context.Context, ownerID, categoryID int64) (int, error) {
	if err := l.lockWrite(ctx); err != nil {
		return 0, fmt.Errorf("DeleteCategory: %w", err)
	}
	defer l.unlockWrite(ctx)

	s, err := l.load(ctx, collection.Categories, collection.Transactions)
	if err != nil {
		return 0, fmt.Errorf("DeleteCategory: %w", err)
	}
	ci := s.categoryIndex(ownerID, categoryID)
	if ci < 0 {
		return 0, fmt.Errorf("DeleteCategory: %w: %d", domain.ErrCategoryNotFound, categoryID)
	}

	doomed := make(map[int64]bool)
	for _, t := range s.transactions {
		if t.OwnerID != ownerID || t.CategoryID != categoryID {
			continue
		}
		if t.IsDerived() {
			return 0, fmt.Errorf("DeleteCategory: %w: transaction %d", domain.ErrCategoryInUse, t.ID)
		}
		doomed[t.ID] = true
	}

	s.categories = append(s.categories[:ci], s.categories[ci+1:]...)
	s.touch(collection.Categories)
	removed := s.removeTransactions(ownerID, doomed)

	if err := l.commit(ctx, s, "DeleteCategory", ownerID); err != nil {
		return 0, err
	}
	return removed, nil
}

// ListCategories returns the owner's categories ordered by id.
func (l *Ledger) ListCategories(ctx context.Context, ownerID int64) ([]domain.Category, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, err := l.load(ctx, collection.Categories)
	if err != nil {
		return nil, fmt.Errorf("ListCategories: %w", err)
	}
	out := []domain.Category{}
	for _, c := range s.categories {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
