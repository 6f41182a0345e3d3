package escrow

import (
	"crypto/ed25519"

	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/token"
)

var (
	EscrowPrefix = []byte("escrow")
)

type GetEscrowAddressArgs struct {
	// Program defaults to PROGRAM_ID when unset.
	Program ed25519.PublicKey
	Maker   ed25519.PublicKey
}

// GetEscrowAddress searches for the escrow address of a maker and returns it
// with its bump. Only clients search; the program verifies with
// CreateEscrowAddress.
func GetEscrowAddress(args *GetEscrowAddressArgs) (ed25519.PublicKey, uint8, error) {
	return solana.FindProgramAddressAndBump(
		programOrDefault(args.Program),
		EscrowPrefix,
		args.Maker,
	)
}

// CreateEscrowAddress derives the escrow address for an exact bump, without
// any search.
func CreateEscrowAddress(program, maker ed25519.PublicKey, bump uint8) (ed25519.PublicKey, error) {
	return solana.CreateProgramAddress(
		programOrDefault(program),
		EscrowSeeds(maker, bump)...,
	)
}

// EscrowSeeds are the full seeds, bump included, of a maker's escrow address.
func EscrowSeeds(maker ed25519.PublicKey, bump uint8) [][]byte {
	return [][]byte{EscrowPrefix, maker, {bump}}
}

type GetVaultAddressArgs struct {
	Escrow ed25519.PublicKey
	MintX  ed25519.PublicKey
}

// GetVaultAddress returns the conventional vault location: the escrow's
// associated token account for the offered mint. The program only requires
// the vault's authority and mint to match, not this address.
func GetVaultAddress(args *GetVaultAddressArgs) (ed25519.PublicKey, error) {
	return token.GetAssociatedAccount(args.Escrow, args.MintX)
}
