package tests

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/code-escrow/pkg/database/query"
	"github.com/code-payments/code-escrow/pkg/ledger/account"
)

func RunTests(t *testing.T, s account.Store, teardown func()) {
	for _, tf := range []func(t *testing.T, s account.Store){
		testRoundTrip,
		testUpdate,
		testStaleVersion,
		testDelete,
		testAtomicCommit,
		testGetMany,
		testGetAllByOwner,
		testInvalidRecord,
	} {
		tf(t, s)
		teardown()
	}
}

func testRoundTrip(t *testing.T, s account.Store) {
	ctx := context.Background()

	address := newAddress(t)

	actual, err := s.Get(ctx, address)
	assert.Equal(t, account.ErrNotFound, err)
	assert.Nil(t, actual)

	expected := &account.Record{
		Address:    address,
		Owner:      newAddress(t),
		Lamports:   1_461_600,
		Data:       []byte{1, 2, 3},
		Executable: false,
	}
	cloned := expected.Clone()

	require.NoError(t, s.Commit(ctx, []*account.Record{expected}, nil))
	assert.EqualValues(t, 1, expected.Version)
	assert.NotZero(t, expected.Id)
	assert.False(t, expected.CreatedAt.IsZero())

	actual, err = s.Get(ctx, address)
	require.NoError(t, err)
	assert.Equal(t, expected.Id, actual.Id)
	assert.Equal(t, cloned.Address, actual.Address)
	assert.Equal(t, cloned.Owner, actual.Owner)
	assert.Equal(t, cloned.Lamports, actual.Lamports)
	assert.Equal(t, cloned.Data, actual.Data)
	assert.Equal(t, cloned.Executable, actual.Executable)
	assert.EqualValues(t, 1, actual.Version)

	// Mutating a returned record must not affect the store
	actual.Data[0] = 0xff
	again, err := s.Get(ctx, address)
	require.NoError(t, err)
	assert.EqualValues(t, 1, again.Data[0])
}

func testUpdate(t *testing.T, s account.Store) {
	ctx := context.Background()

	record := &account.Record{
		Address:  newAddress(t),
		Owner:    newAddress(t),
		Lamports: 10,
	}
	require.NoError(t, s.Commit(ctx, []*account.Record{record}, nil))
	id := record.Id
	createdAt := record.CreatedAt

	newOwner := newAddress(t)
	record.Lamports = 5
	record.Owner = newOwner
	record.Data = make([]byte, 105)
	require.NoError(t, s.Commit(ctx, []*account.Record{record}, nil))
	assert.EqualValues(t, 2, record.Version)
	assert.Equal(t, id, record.Id)

	actual, err := s.Get(ctx, record.Address)
	require.NoError(t, err)
	assert.EqualValues(t, 5, actual.Lamports)
	assert.Equal(t, newOwner, actual.Owner)
	assert.Len(t, actual.Data, 105)
	assert.EqualValues(t, 2, actual.Version)
	assert.Equal(t, id, actual.Id)
	assert.Equal(t, createdAt.Unix(), actual.CreatedAt.Unix())
}

func testStaleVersion(t *testing.T, s account.Store) {
	ctx := context.Background()

	record := &account.Record{
		Address:  newAddress(t),
		Owner:    newAddress(t),
		Lamports: 10,
	}
	require.NoError(t, s.Commit(ctx, []*account.Record{record}, nil))

	// Two readers observe version 1
	first, err := s.Get(ctx, record.Address)
	require.NoError(t, err)
	second, err := s.Get(ctx, record.Address)
	require.NoError(t, err)

	first.Lamports = 20
	require.NoError(t, s.Commit(ctx, []*account.Record{first}, nil))

	second.Lamports = 30
	assert.Equal(t, account.ErrStaleVersion, s.Commit(ctx, []*account.Record{second}, nil))

	// Creating an account that already exists is also stale
	duplicate := &account.Record{
		Address: record.Address,
		Owner:   record.Owner,
	}
	assert.Equal(t, account.ErrStaleVersion, s.Commit(ctx, []*account.Record{duplicate}, nil))

	actual, err := s.Get(ctx, record.Address)
	require.NoError(t, err)
	assert.EqualValues(t, 20, actual.Lamports)
	assert.EqualValues(t, 2, actual.Version)
}

func testDelete(t *testing.T, s account.Store) {
	ctx := context.Background()

	owner := newAddress(t)
	record := &account.Record{
		Address:  newAddress(t),
		Owner:    owner,
		Lamports: 10,
	}
	require.NoError(t, s.Commit(ctx, []*account.Record{record}, nil))

	stale := record.Clone()
	stale.Version = 0
	assert.Equal(t, account.ErrStaleVersion, s.Commit(ctx, nil, []*account.Record{&stale}))

	require.NoError(t, s.Commit(ctx, nil, []*account.Record{record}))

	_, err := s.Get(ctx, record.Address)
	assert.Equal(t, account.ErrNotFound, err)

	count, err := s.CountByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Zero(t, count)

	// Deleting twice is a stale write
	assert.Equal(t, account.ErrStaleVersion, s.Commit(ctx, nil, []*account.Record{record}))

	// The address can be recreated from scratch
	recreated := &account.Record{
		Address: record.Address,
		Owner:   owner,
	}
	require.NoError(t, s.Commit(ctx, []*account.Record{recreated}, nil))
	assert.EqualValues(t, 1, recreated.Version)
}

func testAtomicCommit(t *testing.T, s account.Store) {
	ctx := context.Background()

	existing := &account.Record{
		Address:  newAddress(t),
		Owner:    newAddress(t),
		Lamports: 10,
	}
	toDelete := &account.Record{
		Address:  newAddress(t),
		Owner:    newAddress(t),
		Lamports: 10,
	}
	require.NoError(t, s.Commit(ctx, []*account.Record{existing, toDelete}, nil))

	fresh := &account.Record{
		Address:  newAddress(t),
		Owner:    newAddress(t),
		Lamports: 99,
	}
	stale := existing.Clone()
	stale.Version = 7
	stale.Lamports = 0

	err := s.Commit(ctx, []*account.Record{fresh, &stale}, []*account.Record{toDelete})
	assert.Equal(t, account.ErrStaleVersion, err)

	// Nothing was applied
	_, err = s.Get(ctx, fresh.Address)
	assert.Equal(t, account.ErrNotFound, err)

	actual, err := s.Get(ctx, existing.Address)
	require.NoError(t, err)
	assert.EqualValues(t, 10, actual.Lamports)

	_, err = s.Get(ctx, toDelete.Address)
	require.NoError(t, err)

	// A consistent commit applies every change
	fresh.Version = 0
	existing.Lamports = 0
	require.NoError(t, s.Commit(ctx, []*account.Record{fresh, existing}, []*account.Record{toDelete}))

	records, err := s.GetMany(ctx, fresh.Address, existing.Address, toDelete.Address)
	require.NoError(t, err)
	require.Len(t, records, 2)
}

func testGetMany(t *testing.T, s account.Store) {
	ctx := context.Background()

	var addresses []string
	var records []*account.Record
	for i := 0; i < 5; i++ {
		record := &account.Record{
			Address:  newAddress(t),
			Owner:    newAddress(t),
			Lamports: uint64(i),
		}
		records = append(records, record)
		addresses = append(addresses, record.Address)
	}
	require.NoError(t, s.Commit(ctx, records, nil))

	missing := newAddress(t)
	actual, err := s.GetMany(ctx, append([]string{missing}, addresses...)...)
	require.NoError(t, err)
	require.Len(t, actual, 5)

	byAddress := make(map[string]*account.Record)
	for _, record := range actual {
		byAddress[record.Address] = record
	}
	for i, address := range addresses {
		require.Contains(t, byAddress, address)
		assert.EqualValues(t, i, byAddress[address].Lamports)
	}

	actual, err = s.GetMany(ctx, missing)
	require.NoError(t, err)
	assert.Empty(t, actual)
}

func testGetAllByOwner(t *testing.T, s account.Store) {
	ctx := context.Background()

	owner := newAddress(t)

	_, err := s.GetAllByOwner(ctx, owner, query.EmptyCursor, 10, query.Ascending)
	assert.Equal(t, account.ErrNotFound, err)

	var owned []*account.Record
	for i := 0; i < 10; i++ {
		record := &account.Record{
			Address:  newAddress(t),
			Owner:    owner,
			Lamports: uint64(i),
		}
		other := &account.Record{
			Address: newAddress(t),
			Owner:   newAddress(t),
		}
		require.NoError(t, s.Commit(ctx, []*account.Record{record, other}, nil))
		owned = append(owned, record)
	}

	count, err := s.CountByOwner(ctx, owner)
	require.NoError(t, err)
	assert.EqualValues(t, 10, count)

	actual, err := s.GetAllByOwner(ctx, owner, query.EmptyCursor, 100, query.Ascending)
	require.NoError(t, err)
	require.Len(t, actual, 10)
	for i, record := range actual {
		assert.Equal(t, owned[i].Address, record.Address)
	}

	actual, err = s.GetAllByOwner(ctx, owner, query.EmptyCursor, 3, query.Descending)
	require.NoError(t, err)
	require.Len(t, actual, 3)
	assert.Equal(t, owned[9].Address, actual[0].Address)
	assert.Equal(t, owned[7].Address, actual[2].Address)

	actual, err = s.GetAllByOwner(ctx, owner, query.ToCursor(owned[4].Id), 3, query.Ascending)
	require.NoError(t, err)
	require.Len(t, actual, 3)
	assert.Equal(t, owned[5].Address, actual[0].Address)

	actual, err = s.GetAllByOwner(ctx, owner, query.ToCursor(owned[4].Id), 100, query.Descending)
	require.NoError(t, err)
	require.Len(t, actual, 4)
	assert.Equal(t, owned[3].Address, actual[0].Address)

	_, err = s.GetAllByOwner(ctx, owner, query.ToCursor(owned[9].Id), 100, query.Ascending)
	assert.Equal(t, account.ErrNotFound, err)
}

func testInvalidRecord(t *testing.T, s account.Store) {
	ctx := context.Background()

	for _, record := range []*account.Record{
		{Owner: newAddress(t)},
		{Address: newAddress(t)},
		{Address: "not-base58-0OIl", Owner: newAddress(t)},
		{Address: base58.Encode([]byte{1, 2, 3}), Owner: newAddress(t)},
	} {
		assert.Error(t, s.Commit(ctx, []*account.Record{record}, nil))
	}

	count, err := s.CountByOwner(ctx, newAddress(t))
	require.NoError(t, err)
	assert.Zero(t, count)
}

func newAddress(t *testing.T) string {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return base58.Encode(pub)
}
