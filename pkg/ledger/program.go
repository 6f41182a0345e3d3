package ledger

import (
	"crypto/ed25519"

	"github.com/mr-tron/base58"

	"github.com/code-payments/code-escrow/pkg/solana/system"
)

var (
	systemProgramKey = ed25519.PublicKey(system.ProgramKey[:])

	// NativeLoaderKey owns the accounts of every program registered with the
	// ledger.
	NativeLoaderKey = mustBase58Decode("NativeLoader1111111111111111111111111111111")
)

// Program processes the instructions addressed to its program id.
//
// Accounts are passed positionally in the order the instruction lists them.
// A returned error aborts the whole transaction. Programs should return a
// solana.InstructionErrorKey or solana.CustomError so callers can tell
// rejections apart.
type Program interface {
	Process(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error
}

// ProgramFunc adapts a function to the Program interface.
type ProgramFunc func(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error

func (f ProgramFunc) Process(ctx *InvokeContext, accounts []*AccountInfo, data []byte) error {
	return f(ctx, accounts, data)
}

// Signer authorizes the program derived address produced by its seeds during
// a cross-program invocation. The address is derived under the id of the
// invoking program, so a program can only sign for its own addresses.
type Signer struct {
	seeds [][]byte
}

// NewSigner returns a Signer for the address derived from seeds, which must
// include the bump.
func NewSigner(seeds ...[]byte) Signer {
	copied := make([][]byte, len(seeds))
	for i, seed := range seeds {
		copied[i] = append([]byte(nil), seed...)
	}
	return Signer{seeds: copied}
}

func mustBase58Decode(value string) ed25519.PublicKey {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}
