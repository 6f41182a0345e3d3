package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/code-escrow/pkg/database/query"
	"github.com/code-payments/code-escrow/pkg/ledger/account"

	pgutil "github.com/code-payments/code-escrow/pkg/database/postgres"
)

type store struct {
	db *sqlx.DB
}

func New(db *sql.DB) account.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// NewFromConfig opens a connection pool with the provided config and returns
// a store over it, along with the function that closes the pool.
func NewFromConfig(ctx context.Context, configProvider ConfigProvider) (account.Store, func() error, error) {
	conf := configProvider()

	db, err := pgutil.Open(&pgutil.Config{
		Host:               conf.host.Get(ctx),
		Port:               int(conf.port.Get(ctx)),
		User:               conf.user.Get(ctx),
		Password:           conf.password.Get(ctx),
		DbName:             conf.name.Get(ctx),
		SslMode:            conf.sslMode.Get(ctx),
		MaxOpenConnections: int(conf.maxOpenConnections.Get(ctx)),
		MaxIdleConnections: int(conf.maxIdleConnections.Get(ctx)),
	})
	if err != nil {
		return nil, nil, err
	}

	return New(db), db.Close, nil
}

// Get implements account.Store.Get
func (s *store) Get(ctx context.Context, address string) (*account.Record, error) {
	obj, err := dbGet(ctx, s.db, address)
	if err != nil {
		return nil, err
	}

	return fromModel(obj), nil
}

// GetMany implements account.Store.GetMany
func (s *store) GetMany(ctx context.Context, addresses ...string) ([]*account.Record, error) {
	models, err := dbGetMany(ctx, s.db, addresses...)
	if err != nil {
		return nil, err
	}

	records := make([]*account.Record, len(models))
	for i, model := range models {
		records[i] = fromModel(model)
	}
	return records, nil
}

// GetAllByOwner implements account.Store.GetAllByOwner
func (s *store) GetAllByOwner(ctx context.Context, owner string, cursor query.Cursor, limit uint64, direction query.Ordering) ([]*account.Record, error) {
	models, err := dbGetAllByOwner(ctx, s.db, owner, cursor, limit, direction)
	if err != nil {
		return nil, err
	}

	records := make([]*account.Record, len(models))
	for i, model := range models {
		records[i] = fromModel(model)
	}
	return records, nil
}

// CountByOwner implements account.Store.CountByOwner
func (s *store) CountByOwner(ctx context.Context, owner string) (uint64, error) {
	return dbCountByOwner(ctx, s.db, owner)
}

// Commit implements account.Store.Commit
func (s *store) Commit(ctx context.Context, updates []*account.Record, deletes []*account.Record) error {
	updateModels := make([]*model, len(updates))
	for i, record := range updates {
		obj, err := toModel(record)
		if err != nil {
			return err
		}
		updateModels[i] = obj
	}

	deleteModels := make([]*model, len(deletes))
	for i, record := range deletes {
		deleteModels[i] = &model{
			Address: record.Address,
			Version: int64(record.Version),
		}
	}

	err := pgutil.ExecuteInTx(ctx, s.db, sql.LevelDefault, func(tx *sqlx.Tx) error {
		for _, obj := range deleteModels {
			if err := obj.dbDelete(ctx, tx); err != nil {
				return err
			}
		}

		for _, obj := range updateModels {
			if err := obj.dbSave(ctx, tx); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	for i, obj := range updateModels {
		fromModel(obj).CopyTo(updates[i])
	}
	return nil
}
