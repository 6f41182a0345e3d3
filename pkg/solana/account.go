package solana

import (
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"
)

// ErrNoAccountInfo indicates no account exists at the requested address.
var ErrNoAccountInfo = errors.New("no account info")

// AccountInfo is a committed snapshot of an account.
type AccountInfo struct {
	Data       []byte
	Owner      ed25519.PublicKey
	Lamports   uint64
	Executable bool
}

// AccountInfoGetter reads committed accounts.
type AccountInfoGetter interface {
	// GetAccountInfo returns ErrNoAccountInfo if the account does not exist.
	GetAccountInfo(ctx context.Context, account ed25519.PublicKey) (*AccountInfo, error)
}
