package native

import (
	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-escrow/pkg/ledger"
	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/solana/memo"
)

type memoProgram struct{}

// NewMemoProgram returns the program that records UTF-8 memos. Every account
// passed to it must be a signer.
func NewMemoProgram() ledger.Program {
	return &memoProgram{}
}

func (p *memoProgram) Process(ctx *ledger.InvokeContext, accounts []*ledger.AccountInfo, data []byte) error {
	text, err := memo.ParseMemo(data)
	if err != nil {
		return err
	}

	for _, account := range accounts {
		if !account.IsSigner() {
			ctx.Logger().WithField("signer", base58.Encode(account.Key())).Debug("memo signer missing")
			return solana.InstructionErrorMissingRequiredSignature
		}
	}

	ctx.Logger().WithFields(logrus.Fields{
		"program": "memo",
		"memo":    text,
	}).Trace("memo")
	return nil
}
