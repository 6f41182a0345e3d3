package escrow

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/code-payments/code-escrow/pkg/solana"
)

func putKey(dst []byte, v ed25519.PublicKey, offset *int) {
	copy(dst[*offset:*offset+ed25519.PublicKeySize], v)
	*offset += ed25519.PublicKeySize
}
func getKey(src []byte, dst *ed25519.PublicKey, offset *int) {
	*dst = make([]byte, ed25519.PublicKeySize)
	copy(*dst, src[*offset:])
	*offset += ed25519.PublicKeySize
}

func putUint8(dst []byte, v uint8, offset *int) {
	dst[*offset] = v
	*offset += 1
}
func getUint8(src []byte, dst *uint8, offset *int) {
	*dst = src[*offset]
	*offset += 1
}

func putUint64(dst []byte, v uint64, offset *int) {
	binary.LittleEndian.PutUint64(dst[*offset:], v)
	*offset += 8
}
func getUint64(src []byte, dst *uint64, offset *int) {
	*dst = binary.LittleEndian.Uint64(src[*offset:])
	*offset += 8
}

func mustBase58Decode(value string) []byte {
	decoded, err := base58.Decode(value)
	if err != nil {
		panic(err)
	}
	return decoded
}

// getInstruction returns the compiled instruction at index along with the
// payload following its opcode. The program key is not checked, since the
// escrow program may be deployed under any identity.
func getInstruction(m solana.Message, index int, t InstructionType, numAccounts int) (*solana.CompiledInstruction, []byte, error) {
	if index >= len(m.Instructions) {
		return nil, nil, errors.Errorf("instruction doesn't exist at %d", index)
	}

	i := m.Instructions[index]

	actual, payload, err := ParseInstructionType(i.Data)
	if err != nil || actual != t {
		return nil, nil, solana.ErrIncorrectInstruction
	}
	if len(i.Accounts) != numAccounts {
		return nil, nil, errors.Errorf("invalid number of accounts: %d", len(i.Accounts))
	}

	return &i, payload, nil
}
