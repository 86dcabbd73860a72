package domain

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrCategoryNotFound     = errors.New("category not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrAssetAccountNotFound = errors.New("asset account not found")
	ErrAssetRecordNotFound  = errors.New("asset record not found")
	ErrDuplicateCategory    = errors.New("duplicate category")
	ErrInvalidRecordAmount  = errors.New("invalid record amount")

	// ErrDerivedTransaction is returned when the transaction CRUD is asked to
	// change a transaction owned by an asset-flow record.
	ErrDerivedTransaction = errors.New("transaction is derived from an asset record")
	// ErrCategoryInUse is returned when deleting a category that backs a
	// derived transaction.
	ErrCategoryInUse = errors.New("category is used by an asset account")
	ErrInvalidInput  = errors.New("invalid input")
)

// IsNotFound reports whether err is one of the not-found kinds.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUserNotFound) ||
		errors.Is(err, ErrCategoryNotFound) ||
		errors.Is(err, ErrTransactionNotFound) ||
		errors.Is(err, ErrAssetAccountNotFound) ||
		errors.Is(err, ErrAssetRecordNotFound)
}

// IsConflict reports whether err means the request clashes with stored state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateCategory) ||
		errors.Is(err, ErrDerivedTransaction) ||
		errors.Is(err, ErrCategoryInUse)
}

// IsInvalid reports whether err is a validation failure of caller input.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidInput) || errors.Is(err, ErrInvalidRecordAmount)
}
