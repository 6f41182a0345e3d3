package account

import (
	"context"

	"github.com/code-payments/code-escrow/pkg/database/query"
)

type Store interface {
	// Get returns the account at address.
	//
	// Returns ErrNotFound if no record is found.
	Get(ctx context.Context, address string) (*Record, error)

	// GetMany returns the accounts that exist among the provided addresses.
	// Missing accounts are omitted rather than reported as an error.
	GetMany(ctx context.Context, addresses ...string) ([]*Record, error)

	// GetAllByOwner pages through the accounts owned by a program.
	//
	// Returns ErrNotFound if no records are found.
	GetAllByOwner(ctx context.Context, owner string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Record, error)

	// CountByOwner returns the number of accounts owned by a program.
	CountByOwner(ctx context.Context, owner string) (uint64, error)

	// Commit atomically saves updates and removes deletes. Every record must
	// carry the version it was read at, with zero meaning the account must not
	// exist yet. Deleted accounts must exist at their version. If any version
	// doesn't match, nothing is applied and ErrStaleVersion is returned.
	//
	// On success, each update is refreshed with its new Id, Version, and
	// CreatedAt.
	Commit(ctx context.Context, updates []*Record, deletes []*Record) error
}
