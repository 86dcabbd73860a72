package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/dvloznov/household-ledger/internal/collection"
	"github.com/dvloznov/household-ledger/internal/domain"
)

// CreateUser registers a new owner partition.
func (l *Ledger) CreateUser(ctx context.Context, name, email string) (domain.User, error) {
	if err := l.lockWrite(ctx); err != nil {
		return domain.User{}, fmt.Errorf("CreateUser: %w", err)
	}
	defer l.unlockWrite(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return domain.User{}, fmt.Errorf("CreateUser: %w: name is required", domain.ErrInvalidInput)
	}

	s, err := l.load(ctx, collection.Users)
	if err != nil {
		return domain.User{}, fmt.Errorf("CreateUser: %w", err)
	}

	now := l.now()
	u := domain.User{
		ID:        collection.NextID(collection.IDs(s.users, func(u domain.User) int64 { return u.ID })),
		Name:      name,
		Email:     strings.TrimSpace(email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users = append(s.users, u)
	s.touch(collection.Users)
	if err := l.commit(ctx, s, "CreateUser", u.ID); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// GetUser returns one user.
func (l *Ledger) GetUser(ctx context.Context, id int64) (domain.User, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, err := l.load(ctx, collection.Users)
	if err != nil {
		return domain.User{}, fmt.Errorf("GetUser: %w", err)
	}
	i := s.userIndex(id)
	if i < 0 {
		return domain.User{}, fmt.Errorf("GetUser: %w: %d", domain.ErrUserNotFound, id)
	}
	return s.users[i], nil
}

// ListUsers returns every user.
func (l *Ledger) ListUsers(ctx context.Context) ([]domain.User, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s, err := l.load(ctx, collection.Users)
	if err != nil {
		return nil, fmt.Errorf("ListUsers: %w", err)
	}
	return s.users, nil
}

// DeleteUser removes a user and the whole of its partition.
func (l *Ledger) DeleteUser(ctx context.Context, id int64) error {
	if err := l.lockWrite(ctx); err != nil {
		return fmt.Errorf("DeleteUser: %w", err)
	}
	defer l.unlockWrite(ctx)

	s, err := l.load(ctx, collection.All...)
	if err != nil {
		return fmt.Errorf("DeleteUser: %w", err)
	}
	i := s.userIndex(id)
	if i < 0 {
		return fmt.Errorf("DeleteUser: %w: %d", domain.ErrUserNotFound, id)
	}

	s.users = append(s.users[:i], s.users[i+1:]...)
	s.categories = dropOwner(s.categories, id, func(c domain.Category) int64 { return c.OwnerID })
	s.transactions = dropOwner(s.transactions, id, func(t domain.Transaction) int64 { return t.OwnerID })
	s.accounts = dropOwner(s.accounts, id, func(a domain.AssetFlowAccount) int64 { return a.OwnerID })
	s.touch(collection.All...)

	return l.commit(ctx, s, "DeleteUser", id)
}

func dropOwner[T any](records []T, ownerID int64, owner func(T) int64) []T {
	kept := records[:0]
	for _, r := range records {
		if owner(r) != ownerID {
			kept = append(kept, r)
		}
	}
	return kept
}
