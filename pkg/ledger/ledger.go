// Package ledger executes Solana style transactions against a persistent
// account store.
//
// A transaction is atomic: either every account change its instructions make
// is committed, or none are. Transactions touching disjoint accounts run in
// parallel, while those sharing a writable account are serialized by striped
// locks. Stores shared across processes are protected by optimistic account
// versions, and a transaction that loses a commit race is re-executed.
package ledger

import (
	"context"
	"crypto/ed25519"
	"math/bits"
	"time"

	"github.com/mr-tron/base58"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/code-escrow/pkg/database/query"
	"github.com/code-payments/code-escrow/pkg/ledger/account"
	"github.com/code-payments/code-escrow/pkg/metrics"
	"github.com/code-payments/code-escrow/pkg/retry"
	"github.com/code-payments/code-escrow/pkg/retry/backoff"
	"github.com/code-payments/code-escrow/pkg/solana"
	"github.com/code-payments/code-escrow/pkg/sync"
)

type Ledger struct {
	log      *logrus.Entry
	conf     *conf
	store    account.Store
	programs map[string]Program
	locks    *sync.StripedLock
	statuses *statusCache
}

type Option func(l *Ledger)

// WithProgram registers the program that executes instructions addressed to
// id.
func WithProgram(id ed25519.PublicKey, program Program) Option {
	return func(l *Ledger) {
		l.programs[string(id)] = program
	}
}

func New(store account.Store, configProvider ConfigProvider, opts ...Option) *Ledger {
	ctx := context.Background()
	conf := configProvider()

	l := &Ledger{
		log:      logrus.StandardLogger().WithField("type", "ledger"),
		conf:     conf,
		store:    store,
		programs: make(map[string]Program),
		locks:    sync.NewStripedLock(uint(conf.lockStripes.Get(ctx))),
		statuses: newStatusCache(int(conf.signatureCacheSize.Get(ctx))),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Rent returns the rent parameters transactions are currently checked
// against.
func (l *Ledger) Rent(ctx context.Context) Rent {
	return Rent{
		LamportsPerByteYear: l.conf.rentLamportsPerByteYear.Get(ctx),
		ExemptionThreshold:  l.conf.rentExemptionThreshold.Get(ctx),
	}
}

// ProcessTransaction verifies, executes and commits a signed transaction.
//
// Rejected transactions return a *solana.TransactionError and leave every
// account untouched. Any other error is an infrastructure failure.
func (l *Ledger) ProcessTransaction(ctx context.Context, tx solana.Transaction) (solana.Signature, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "ProcessTransaction")
	defer tracer.End()

	start := time.Now()

	var sig solana.Signature
	if len(tx.Signatures) > 0 {
		sig = tx.Signatures[0]
	}

	log := l.log.WithFields(logrus.Fields{
		"method":    "ProcessTransaction",
		"signature": sig.String(),
	})

	err := l.processTransaction(ctx, log, sig, &tx)
	recordTransactionProcessedEvent(ctx, sig.String(), len(tx.Message.Instructions), time.Since(start), err)
	if err != nil {
		tracer.OnError(err)
		log.WithError(err).Debug("transaction failed")
		return sig, err
	}

	log.Debug("transaction committed")
	return sig, nil
}

func (l *Ledger) processTransaction(ctx context.Context, log *logrus.Entry, sig solana.Signature, tx *solana.Transaction) error {
	if err := tx.Message.Sanitize(); err != nil {
		log.WithError(err).Debug("transaction failed sanitization")
		return toTransactionError(err)
	}
	if err := tx.VerifySignatures(); err != nil {
		log.WithError(err).Debug("transaction failed signature verification")
		return toTransactionError(err)
	}

	for _, ix := range tx.Message.Instructions {
		if !l.isProgram(tx.Message.Accounts[ix.ProgramIndex]) {
			return solana.NewTransactionError(solana.TransactionErrorInvalidProgramForExecute)
		}
	}

	release := l.locks.Acquire(l.lockKeys(&tx.Message))
	defer release()

	if l.statuses.contains(sig) {
		return solana.NewTransactionError(solana.TransactionErrorDuplicateSignature)
	}

	attempts, err := retry.Retry(
		func() error {
			return l.execute(ctx, log, tx)
		},
		l.commitStrategies(ctx)...,
	)
	recordCommitAttempts(ctx, attempts)
	if errors.Is(err, account.ErrStaleVersion) {
		log.WithField("attempts", attempts).Warn("giving up after repeated concurrent modification")
		return solana.NewTransactionError(solana.TransactionErrorAccountInUse)
	} else if err != nil {
		return err
	}

	l.statuses.add(sig)
	return nil
}

// execute loads the transaction's accounts, runs every instruction, and
// commits the result. It is safe to call again after a stale commit.
func (l *Ledger) execute(ctx context.Context, log *logrus.Entry, tx *solana.Transaction) error {
	accounts, err := l.load(ctx, &tx.Message)
	if err != nil {
		return err
	}

	rent := l.Rent(ctx)
	for i, compiled := range tx.Message.Instructions {
		programID := tx.Message.Accounts[compiled.ProgramIndex]

		infos := make([]*AccountInfo, len(compiled.Accounts))
		for j, index := range compiled.Accounts {
			infos[j] = &AccountInfo{
				account:    accounts[index],
				isSigner:   tx.Message.IsSigner(int(index)),
				isWritable: accounts[index].writable,
			}
		}

		invoke := &InvokeContext{
			ctx:       ctx,
			log:       log.WithField("instruction", i),
			rent:      rent,
			programs:  l.programs,
			programID: programID,
			accounts:  infos,
			pre:       takePreAccounts(infos),
			height:    1,
		}

		err := l.programs[string(programID)].Process(invoke, infos, compiled.Data)
		if err == nil {
			err = invoke.pre.verify(programID)
		}
		if err != nil {
			return newInstructionError(log, i, err)
		}
	}

	var updates, deletes []*account.Record
	for _, loaded := range accounts {
		if !loaded.writable || !loaded.changed() {
			continue
		}

		// Accounts drained of lamports are removed from the ledger
		if loaded.Lamports == 0 {
			if loaded.record != nil {
				deletes = append(deletes, loaded.record)
			}
			continue
		}

		if len(loaded.Data) > 0 && !rent.IsExempt(loaded.Lamports, len(loaded.Data)) {
			log.WithField("account", base58.Encode(loaded.Address)).Debug("account would not be rent exempt")
			return solana.NewTransactionError(solana.TransactionErrorInsufficientFundsForRent)
		}

		updates = append(updates, loaded.toRecord())
	}

	if len(updates) == 0 && len(deletes) == 0 {
		return nil
	}
	return l.store.Commit(ctx, updates, deletes)
}

func (l *Ledger) load(ctx context.Context, m *solana.Message) ([]*loadedAccount, error) {
	addresses := make([]string, 0, len(m.Accounts))
	for _, key := range m.Accounts {
		if !l.isProgram(key) {
			addresses = append(addresses, base58.Encode(key))
		}
	}

	records, err := l.store.GetMany(ctx, addresses...)
	if err != nil {
		return nil, errors.Wrap(err, "error loading accounts")
	}

	byAddress := make(map[string]*account.Record, len(records))
	for _, record := range records {
		byAddress[record.Address] = record
	}

	loaded := make([]*loadedAccount, len(m.Accounts))
	for i, key := range m.Accounts {
		if l.isProgram(key) {
			loaded[i] = newProgramAccount(key)
			continue
		}

		a, err := newLoadedAccount(key, byAddress[base58.Encode(key)])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid record for %s", base58.Encode(key))
		}
		a.writable = m.IsWritable(i)
		loaded[i] = a
	}

	return loaded, nil
}

// lockKeys splits the message's accounts by the lock they need. Program
// accounts are never writable.
func (l *Ledger) lockKeys(m *solana.Message) (writes, reads [][]byte) {
	for i, key := range m.Accounts {
		if m.IsWritable(i) && !l.isProgram(key) {
			writes = append(writes, key)
		} else {
			reads = append(reads, key)
		}
	}
	return writes, reads
}

func (l *Ledger) commitStrategies(ctx context.Context) []retry.Strategy {
	return []retry.Strategy{
		retry.RetriableErrors(account.ErrStaleVersion),
		retry.Limit(uint(l.conf.commitMaxAttempts.Get(ctx))),
		retry.Canceled(ctx),
		retry.BackoffWithJitter(
			backoff.BinaryExponential(l.conf.commitBackoff.Get(ctx)),
			l.conf.commitMaxBackoff.Get(ctx),
			0.1,
		),
	}
}

func (l *Ledger) isProgram(key ed25519.PublicKey) bool {
	_, ok := l.programs[string(key)]
	return ok
}

// GetAccountInfo returns the committed state of an account, or
// solana.ErrNoAccountInfo if it doesn't exist.
func (l *Ledger) GetAccountInfo(ctx context.Context, address ed25519.PublicKey) (*solana.AccountInfo, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetAccountInfo")
	defer tracer.End()

	if l.isProgram(address) {
		return newProgramAccount(address).info(), nil
	}

	record, err := l.store.Get(ctx, base58.Encode(address))
	if err == account.ErrNotFound {
		return nil, solana.ErrNoAccountInfo
	} else if err != nil {
		tracer.OnError(err)
		return nil, errors.Wrap(err, "error getting account")
	}

	loaded, err := newLoadedAccount(address, record)
	if err != nil {
		return nil, errors.Wrap(err, "invalid account record")
	}
	return loaded.info(), nil
}

// GetProgramAccounts pages through the accounts owned by program. The
// returned cursor resumes paging after the last account.
//
// Returns account.ErrNotFound when there are no more accounts.
func (l *Ledger) GetProgramAccounts(ctx context.Context, program ed25519.PublicKey, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*Account, query.Cursor, error) {
	tracer := metrics.TraceMethodCall(ctx, metricsStructName, "GetProgramAccounts")
	defer tracer.End()

	records, err := l.store.GetAllByOwner(ctx, base58.Encode(program), cursor, limit, direction)
	if err != nil {
		if err != account.ErrNotFound {
			tracer.OnError(err)
		}
		return nil, nil, err
	}

	accounts := make([]*Account, len(records))
	for i, record := range records {
		address, err := base58.Decode(record.Address)
		if err != nil {
			return nil, nil, errors.Wrap(err, "invalid account address")
		}

		loaded, err := newLoadedAccount(address, record)
		if err != nil {
			return nil, nil, errors.Wrap(err, "invalid account record")
		}
		accounts[i] = &loaded.Account
	}

	return accounts, query.ToCursor(records[len(records)-1].Id), nil
}

// CountProgramAccounts returns the number of accounts owned by program.
func (l *Ledger) CountProgramAccounts(ctx context.Context, program ed25519.PublicKey) (uint64, error) {
	return l.store.CountByOwner(ctx, base58.Encode(program))
}

// SetAccount overwrites an account outside of any transaction, which is how
// genesis state is seeded. Setting zero lamports removes the account.
func (l *Ledger) SetAccount(ctx context.Context, address ed25519.PublicKey, info *solana.AccountInfo) error {
	if l.isProgram(address) {
		return errors.New("cannot overwrite a program account")
	}

	release := l.locks.Acquire([][]byte{address}, nil)
	defer release()

	_, err := retry.Retry(
		func() error {
			existing, err := l.store.Get(ctx, base58.Encode(address))
			if err == account.ErrNotFound {
				existing = nil
			} else if err != nil {
				return err
			}

			if info.Lamports == 0 {
				if existing == nil {
					return nil
				}
				return l.store.Commit(ctx, nil, []*account.Record{existing})
			}

			owner := info.Owner
			if len(owner) == 0 {
				owner = systemProgramKey
			}

			record := &account.Record{
				Address:    base58.Encode(address),
				Owner:      base58.Encode(owner),
				Lamports:   info.Lamports,
				Data:       info.Data,
				Executable: info.Executable,
			}
			if existing != nil {
				record.Id = existing.Id
				record.Version = existing.Version
				record.CreatedAt = existing.CreatedAt
			}

			return l.store.Commit(ctx, []*account.Record{record}, nil)
		},
		l.commitStrategies(ctx)...,
	)
	return err
}

// ErrLamportsOverflow is returned when a credit would overflow an account's
// lamport balance.
var ErrLamportsOverflow = errors.New("lamport balance overflow")

// Airdrop credits lamports to an account, creating it as a system account if
// needed. The credit is applied to the committed balance under the account's
// lock, so it composes with concurrent airdrops and transactions.
func (l *Ledger) Airdrop(ctx context.Context, address ed25519.PublicKey, lamports uint64) error {
	if l.isProgram(address) {
		return errors.New("cannot airdrop to a program account")
	}

	release := l.locks.Acquire([][]byte{address}, nil)
	defer release()

	_, err := retry.Retry(
		func() error {
			record, err := l.store.Get(ctx, base58.Encode(address))
			if err == account.ErrNotFound {
				if lamports == 0 {
					return nil
				}
				record = &account.Record{
					Address: base58.Encode(address),
					Owner:   base58.Encode(systemProgramKey),
				}
			} else if err != nil {
				return err
			}

			balance, carry := bits.Add64(record.Lamports, lamports, 0)
			if carry != 0 {
				return ErrLamportsOverflow
			}
			record.Lamports = balance

			return l.store.Commit(ctx, []*account.Record{record}, nil)
		},
		l.commitStrategies(ctx)...,
	)
	return err
}

func newProgramAccount(key ed25519.PublicKey) *loadedAccount {
	return &loadedAccount{
		Account: Account{
			Address:    key,
			Owner:      NativeLoaderKey,
			Lamports:   1,
			Executable: true,
		},
		program: true,
	}
}

func (a *loadedAccount) info() *solana.AccountInfo {
	return &solana.AccountInfo{
		Data:       a.Data,
		Owner:      a.Owner,
		Lamports:   a.Lamports,
		Executable: a.Executable,
	}
}

func toTransactionError(err error) error {
	var key solana.TransactionErrorKey
	if errors.As(err, &key) {
		return solana.NewTransactionError(key)
	}
	return err
}

func newInstructionError(log *logrus.Entry, index int, err error) error {
	var key solana.InstructionErrorKey
	var custom solana.CustomError
	if !errors.As(err, &key) && !errors.As(err, &custom) {
		log.WithError(err).WithField("instruction", index).Warn("program returned an untyped error")
		err = solana.InstructionErrorGenericError
	}

	txErr, convErr := solana.TransactionErrorFromInstructionError(&solana.InstructionError{
		Index: index,
		Err:   err,
	})
	if convErr != nil {
		return errors.Wrap(convErr, "error building transaction error")
	}
	return txErr
}
