package escrow

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"
)

const (
	EscrowAccountSize = (32 + // maker
		32 + // mint_x
		32 + // mint_y
		8 + // amount
		1) // bump
)

// EscrowAccount is the persisted offer: the maker gives MintX (held by the
// vault) and wants Amount of MintY in return.
type EscrowAccount struct {
	Maker  ed25519.PublicKey
	MintX  ed25519.PublicKey
	MintY  ed25519.PublicKey
	Amount uint64
	Bump   uint8
}

func (obj *EscrowAccount) Marshal() []byte {
	data := make([]byte, EscrowAccountSize)

	var offset int
	putKey(data, obj.Maker, &offset)
	putKey(data, obj.MintX, &offset)
	putKey(data, obj.MintY, &offset)
	putUint64(data, obj.Amount, &offset)
	putUint8(data, obj.Bump, &offset)

	return data
}

func (obj *EscrowAccount) Unmarshal(data []byte) error {
	if len(data) != EscrowAccountSize {
		return ErrInvalidAccountData
	}

	var offset int
	getKey(data, &obj.Maker, &offset)
	getKey(data, &obj.MintX, &offset)
	getKey(data, &obj.MintY, &offset)
	getUint64(data, &obj.Amount, &offset)
	getUint8(data, &obj.Bump, &offset)

	return nil
}

func (obj *EscrowAccount) String() string {
	return fmt.Sprintf(
		"Escrow{maker=%s,mint_x=%s,mint_y=%s,amount=%d,bump=%d}",
		base58.Encode(obj.Maker),
		base58.Encode(obj.MintX),
		base58.Encode(obj.MintY),
		obj.Amount,
		obj.Bump,
	)
}
