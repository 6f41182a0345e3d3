package account

import (
	"bytes"
	"crypto/ed25519"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
)

var (
	ErrNotFound     = errors.New("account not found")
	ErrStaleVersion = errors.New("account version is stale")
)

// Record is the persisted state of a single ledger account.
//
// Version is zero until the record is first committed, and advances by one on
// every commit that touches the account.
type Record struct {
	Id uint64

	Address    string
	Owner      string
	Lamports   uint64
	Data       []byte
	Executable bool

	Version   uint64
	CreatedAt time.Time
}

func (r *Record) Validate() error {
	if err := validateKey(r.Address); err != nil {
		return errors.Wrap(err, "invalid address")
	}

	if err := validateKey(r.Owner); err != nil {
		return errors.Wrap(err, "invalid owner")
	}

	return nil
}

func validateKey(key string) error {
	if len(key) == 0 {
		return errors.New("key is required")
	}

	decoded, err := base58.Decode(key)
	if err != nil {
		return err
	}
	if len(decoded) != ed25519.PublicKeySize {
		return errors.Errorf("key length is %d", len(decoded))
	}

	return nil
}

func (r *Record) Clone() Record {
	return Record{
		Id:         r.Id,
		Address:    r.Address,
		Owner:      r.Owner,
		Lamports:   r.Lamports,
		Data:       bytes.Clone(r.Data),
		Executable: r.Executable,
		Version:    r.Version,
		CreatedAt:  r.CreatedAt,
	}
}

func (r *Record) CopyTo(dst *Record) {
	dst.Id = r.Id
	dst.Address = r.Address
	dst.Owner = r.Owner
	dst.Lamports = r.Lamports
	dst.Data = bytes.Clone(r.Data)
	dst.Executable = r.Executable
	dst.Version = r.Version
	dst.CreatedAt = r.CreatedAt
}
