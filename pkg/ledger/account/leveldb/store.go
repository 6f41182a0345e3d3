package leveldb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/code-payments/code-escrow/pkg/database/query"
	"github.com/code-payments/code-escrow/pkg/ledger/account"
)

const (
	accountKeyPrefix = "account:"
	ownerKeyPrefix   = "owner:"
	lastIdKey        = "meta:last_id"
)

type store struct {
	// commitMu serializes the read-check-write cycle of Commit. Readers go
	// straight to leveldb, which provides consistent batch visibility.
	commitMu sync.Mutex
	db       *leveldb.DB
}

// Open opens, or creates, a leveldb backed account store at path.
func Open(path string) (account.Store, func() error, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open leveldb account store")
	}
	return &store{db: db}, db.Close, nil
}

// NewInMemory returns a leveldb backed account store that is never persisted
// to disk.
func NewInMemory() (account.Store, func() error, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to open in memory leveldb")
	}
	return &store{db: db}, db.Close, nil
}

type value struct {
	Id         uint64    `json:"id"`
	Owner      string    `json:"owner"`
	Lamports   uint64    `json:"lamports"`
	Data       []byte    `json:"data"`
	Executable bool      `json:"executable"`
	Version    uint64    `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
}

func accountKey(address string) []byte {
	return []byte(accountKeyPrefix + address)
}

func ownerPrefix(owner string) []byte {
	return []byte(ownerKeyPrefix + owner + ":")
}

func ownerKey(owner string, id uint64) []byte {
	key := ownerPrefix(owner)
	return binary.BigEndian.AppendUint64(key, id)
}

func (s *store) load(address string) (*account.Record, error) {
	raw, err := s.db.Get(accountKey(address), nil)
	if err == leveldb.ErrNotFound {
		return nil, account.ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var v value
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, errors.Wrapf(err, "corrupt account %s", address)
	}

	return &account.Record{
		Id:         v.Id,
		Address:    address,
		Owner:      v.Owner,
		Lamports:   v.Lamports,
		Data:       v.Data,
		Executable: v.Executable,
		Version:    v.Version,
		CreatedAt:  v.CreatedAt,
	}, nil
}

// Get implements account.Store.Get
func (s *store) Get(_ context.Context, address string) (*account.Record, error) {
	return s.load(address)
}

// GetMany implements account.Store.GetMany
func (s *store) GetMany(_ context.Context, addresses ...string) ([]*account.Record, error) {
	var res []*account.Record
	for _, address := range addresses {
		record, err := s.load(address)
		if err == account.ErrNotFound {
			continue
		} else if err != nil {
			return nil, err
		}
		res = append(res, record)
	}
	return res, nil
}

// GetAllByOwner implements account.Store.GetAllByOwner
func (s *store) GetAllByOwner(ctx context.Context, owner string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*account.Record, error) {
	iter := s.db.NewIterator(util.BytesPrefix(ownerPrefix(owner)), nil)
	defer iter.Release()

	var hasCursor bool
	var start uint64
	if len(cursor) > 0 {
		hasCursor = true
		start = cursor.ToUint64()
	}

	inRange := func(id uint64) bool {
		if !hasCursor {
			return true
		}
		if direction == query.Ascending {
			return id > start
		}
		return id < start
	}

	step := iter.Next
	ok := iter.First()
	if direction == query.Descending {
		step = iter.Prev
		ok = iter.Last()
	}

	var res []*account.Record
	for ; ok; ok = step() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		key := iter.Key()
		id := binary.BigEndian.Uint64(key[len(key)-8:])
		if !inRange(id) {
			continue
		}

		record, err := s.load(string(iter.Value()))
		if err != nil {
			return nil, err
		}
		res = append(res, record)

		if limit > 0 && uint64(len(res)) >= limit {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, account.ErrNotFound
	}
	return res, nil
}

// CountByOwner implements account.Store.CountByOwner
func (s *store) CountByOwner(_ context.Context, owner string) (uint64, error) {
	iter := s.db.NewIterator(util.BytesPrefix(ownerPrefix(owner)), nil)
	defer iter.Release()

	var count uint64
	for iter.Next() {
		count++
	}
	return count, iter.Error()
}

// Commit implements account.Store.Commit
func (s *store) Commit(_ context.Context, updates []*account.Record, deletes []*account.Record) error {
	for _, record := range updates {
		if err := record.Validate(); err != nil {
			return err
		}
	}

	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	existing := make(map[string]*account.Record)
	check := func(record *account.Record, mustExist bool) error {
		current, err := s.load(record.Address)
		if err != nil && err != account.ErrNotFound {
			return err
		}

		var currentVersion uint64
		if current != nil {
			currentVersion = current.Version
			existing[record.Address] = current
		} else if mustExist {
			return account.ErrStaleVersion
		}

		if currentVersion != record.Version {
			return account.ErrStaleVersion
		}
		return nil
	}
	for _, record := range updates {
		if err := check(record, false); err != nil {
			return err
		}
	}
	for _, record := range deletes {
		if err := check(record, true); err != nil {
			return err
		}
	}

	lastId, err := s.lastId()
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)

	for _, record := range deletes {
		current := existing[record.Address]
		batch.Delete(accountKey(record.Address))
		batch.Delete(ownerKey(current.Owner, current.Id))
	}

	now := time.Now()
	saved := make([]account.Record, len(updates))
	for i, record := range updates {
		saved[i] = record.Clone()

		if current, ok := existing[record.Address]; ok {
			saved[i].Id = current.Id
			saved[i].CreatedAt = current.CreatedAt
			batch.Delete(ownerKey(current.Owner, current.Id))
		} else {
			lastId++
			saved[i].Id = lastId
			saved[i].CreatedAt = now
		}
		saved[i].Version++

		raw, err := json.Marshal(&value{
			Id:         saved[i].Id,
			Owner:      saved[i].Owner,
			Lamports:   saved[i].Lamports,
			Data:       saved[i].Data,
			Executable: saved[i].Executable,
			Version:    saved[i].Version,
			CreatedAt:  saved[i].CreatedAt,
		})
		if err != nil {
			return err
		}

		batch.Put(accountKey(record.Address), raw)
		batch.Put(ownerKey(saved[i].Owner, saved[i].Id), []byte(record.Address))
	}

	batch.Put([]byte(lastIdKey), binary.BigEndian.AppendUint64(nil, lastId))

	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return errors.Wrap(err, "failed to write account batch")
	}

	for i, record := range updates {
		saved[i].CopyTo(record)
	}
	return nil
}

func (s *store) lastId() (uint64, error) {
	raw, err := s.db.Get([]byte(lastIdKey), nil)
	if err == leveldb.ErrNotFound {
		return 0, nil
	} else if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(raw), nil
}

func (s *store) reset() error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()

	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte{}, iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		return err
	}
	return s.db.Write(batch, nil)
}
