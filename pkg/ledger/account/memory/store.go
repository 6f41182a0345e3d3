package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/code-payments/code-escrow/pkg/database/query"
	"github.com/code-payments/code-escrow/pkg/ledger/account"
)

type store struct {
	mu      sync.Mutex
	records map[string]*account.Record
	last    uint64
}

type ById []*account.Record

func (a ById) Len() int           { return len(a) }
func (a ById) Swap(i, j int)      { a[i], a[j] = a[j], a[i] }
func (a ById) Less(i, j int) bool { return a[i].Id < a[j].Id }

func New() account.Store {
	return &store{
		records: make(map[string]*account.Record),
	}
}

func (s *store) reset() {
	s.mu.Lock()
	s.records = make(map[string]*account.Record)
	s.last = 0
	s.mu.Unlock()
}

func (s *store) Get(_ context.Context, address string) (*account.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.records[address]
	if !ok {
		return nil, account.ErrNotFound
	}

	cloned := item.Clone()
	return &cloned, nil
}

func (s *store) GetMany(_ context.Context, addresses ...string) ([]*account.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res []*account.Record
	for _, address := range addresses {
		item, ok := s.records[address]
		if !ok {
			continue
		}

		cloned := item.Clone()
		res = append(res, &cloned)
	}
	return res, nil
}

func (s *store) GetAllByOwner(_ context.Context, owner string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*account.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []*account.Record
	for _, item := range s.records {
		if item.Owner == owner {
			items = append(items, item)
		}
	}
	sort.Sort(ById(items))

	res := s.filter(items, cursor, limit, direction)
	if len(res) == 0 {
		return nil, account.ErrNotFound
	}

	cloned := make([]*account.Record, len(res))
	for i, item := range res {
		copied := item.Clone()
		cloned[i] = &copied
	}
	return cloned, nil
}

func (s *store) filter(items []*account.Record, cursor query.Cursor, limit uint64, direction query.Ordering) []*account.Record {
	var start uint64

	start = 0
	if direction == query.Descending {
		start = s.last + 1
	}
	if len(cursor) > 0 {
		start = cursor.ToUint64()
	}

	var res []*account.Record
	for _, item := range items {
		if item.Id > start && direction == query.Ascending {
			res = append(res, item)
		}
		if item.Id < start && direction == query.Descending {
			res = append(res, item)
		}
	}

	if direction == query.Descending {
		sort.Sort(sort.Reverse(ById(res)))
	}

	if limit > 0 && len(res) >= int(limit) {
		return res[:limit]
	}

	return res
}

func (s *store) CountByOwner(_ context.Context, owner string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count uint64
	for _, item := range s.records {
		if item.Owner == owner {
			count++
		}
	}
	return count, nil
}

func (s *store) Commit(_ context.Context, updates []*account.Record, deletes []*account.Record) error {
	for _, record := range updates {
		if err := record.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range updates {
		var current uint64
		if existing, ok := s.records[record.Address]; ok {
			current = existing.Version
		}

		if current != record.Version {
			return account.ErrStaleVersion
		}
	}
	for _, record := range deletes {
		existing, ok := s.records[record.Address]
		if !ok || existing.Version != record.Version {
			return account.ErrStaleVersion
		}
	}

	for _, record := range deletes {
		delete(s.records, record.Address)
	}

	now := time.Now()
	for _, record := range updates {
		existing, ok := s.records[record.Address]
		if ok {
			record.Id = existing.Id
			record.CreatedAt = existing.CreatedAt
		} else {
			s.last++
			record.Id = s.last
			record.CreatedAt = now
		}
		record.Version++

		cloned := record.Clone()
		s.records[record.Address] = &cloned
	}

	return nil
}
