package token

import (
	"bytes"
	"context"
	"crypto/ed25519"

	"github.com/pkg/errors"

	"github.com/code-payments/code-escrow/pkg/solana"
)

var (
	// ErrAccountNotFound indicates there is no account for the given address.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidTokenAccount indicates that an account exists at the
	// given address, but it is either not initialized, or not configured correctly.
	ErrInvalidTokenAccount = errors.New("invalid token account")
)

// Client provides utilities for accessing token accounts for a given token.
type Client struct {
	accounts solana.AccountInfoGetter
	token    ed25519.PublicKey
}

// NewClient creates a new Client.
func NewClient(accounts solana.AccountInfoGetter, token ed25519.PublicKey) *Client {
	return &Client{
		accounts: accounts,
		token:    token,
	}
}

func (c *Client) Token() ed25519.PublicKey {
	return c.token
}

// GetAccount returns the token account info for the specified account.
//
// If the account is not initialized, or belongs to a different
// mint, then ErrInvalidTokenAccount is returned.
func (c *Client) GetAccount(ctx context.Context, accountID ed25519.PublicKey) (*Account, error) {
	data, err := c.getTokenProgramData(ctx, accountID)
	if err != nil {
		return nil, err
	}

	var account Account
	if !account.Unmarshal(data) || !account.IsInitialized() {
		return nil, ErrInvalidTokenAccount
	}

	if !bytes.Equal(c.token, account.Mint) {
		return nil, ErrInvalidTokenAccount
	}

	return &account, nil
}

// GetMint returns the mint state of the client's token.
func (c *Client) GetMint(ctx context.Context) (*Mint, error) {
	data, err := c.getTokenProgramData(ctx, c.token)
	if err != nil {
		return nil, err
	}

	var mint Mint
	if !mint.Unmarshal(data) || !mint.IsInitialized {
		return nil, ErrInvalidTokenAccount
	}
	return &mint, nil
}

func (c *Client) getTokenProgramData(ctx context.Context, address ed25519.PublicKey) ([]byte, error) {
	accountInfo, err := c.accounts.GetAccountInfo(ctx, address)
	if err == solana.ErrNoAccountInfo {
		return nil, ErrAccountNotFound
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to get account info")
	}

	if !bytes.Equal(accountInfo.Owner, ProgramKey) {
		return nil, ErrInvalidTokenAccount
	}

	return accountInfo.Data, nil
}
