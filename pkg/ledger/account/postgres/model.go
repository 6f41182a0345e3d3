package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/code-payments/code-escrow/pkg/ledger/account"

	pgutil "github.com/code-payments/code-escrow/pkg/database/postgres"
	q "github.com/code-payments/code-escrow/pkg/database/query"
)

const (
	accountTableName = "escrow__core_account"

	allColumns = `id, address, owner, lamports, data, executable, version, created_at`
)

type model struct {
	Id         sql.NullInt64 `db:"id"`
	Address    string        `db:"address"`
	Owner      string        `db:"owner"`
	Lamports   int64         `db:"lamports"`
	Data       []byte        `db:"data"`
	Executable bool          `db:"executable"`
	Version    int64         `db:"version"`
	CreatedAt  time.Time     `db:"created_at"`
}

func toModel(obj *account.Record) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	data := obj.Data
	if data == nil {
		data = []byte{}
	}

	return &model{
		Id:         sql.NullInt64{Int64: int64(obj.Id), Valid: obj.Id > 0},
		Address:    obj.Address,
		Owner:      obj.Owner,
		Lamports:   int64(obj.Lamports),
		Data:       data,
		Executable: obj.Executable,
		Version:    int64(obj.Version),
		CreatedAt:  obj.CreatedAt,
	}, nil
}

func fromModel(obj *model) *account.Record {
	return &account.Record{
		Id:         uint64(obj.Id.Int64),
		Address:    obj.Address,
		Owner:      obj.Owner,
		Lamports:   uint64(obj.Lamports),
		Data:       obj.Data,
		Executable: obj.Executable,
		Version:    uint64(obj.Version),
		CreatedAt:  obj.CreatedAt,
	}
}

// dbSave inserts a new account when the model is at version zero, or
// advances an existing one that is still at the model's version.
func (m *model) dbSave(ctx context.Context, tx *sqlx.Tx) error {
	var err error
	if m.Version == 0 {
		query := `INSERT INTO ` + accountTableName + `
			(address, owner, lamports, data, executable, version, created_at)
			VALUES ($1, $2, $3, $4, $5, 1, $6)
			RETURNING ` + allColumns

		err = tx.QueryRowxContext(
			ctx,
			query,
			m.Address,
			m.Owner,
			m.Lamports,
			m.Data,
			m.Executable,
			time.Now(),
		).StructScan(m)

		// A concurrent creator won the race for this address
		err = pgutil.CheckUniqueViolation(err, account.ErrStaleVersion)
	} else {
		query := `UPDATE ` + accountTableName + `
			SET owner = $2, lamports = $3, data = $4, executable = $5, version = version + 1
			WHERE address = $1 AND version = $6
			RETURNING ` + allColumns

		err = tx.QueryRowxContext(
			ctx,
			query,
			m.Address,
			m.Owner,
			m.Lamports,
			m.Data,
			m.Executable,
			m.Version,
		).StructScan(m)
	}

	return pgutil.CheckNoRows(err, account.ErrStaleVersion)
}

func (m *model) dbDelete(ctx context.Context, tx *sqlx.Tx) error {
	query := `DELETE FROM ` + accountTableName + ` WHERE address = $1 AND version = $2`

	res, err := tx.ExecContext(ctx, query, m.Address, m.Version)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return account.ErrStaleVersion
	}
	return nil
}

func dbGet(ctx context.Context, db *sqlx.DB, address string) (*model, error) {
	res := &model{}

	query := `SELECT ` + allColumns + ` FROM ` + accountTableName + ` WHERE address = $1`

	err := db.GetContext(ctx, res, query, address)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, account.ErrNotFound)
	}
	return res, nil
}

func dbGetMany(ctx context.Context, db *sqlx.DB, addresses ...string) ([]*model, error) {
	res := []*model{}

	if len(addresses) == 0 {
		return res, nil
	}

	placeholders := make([]string, len(addresses))
	args := make([]interface{}, len(addresses))
	for i, address := range addresses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = address
	}

	query := fmt.Sprintf(
		`SELECT `+allColumns+` FROM `+accountTableName+` WHERE address IN (%s)`,
		strings.Join(placeholders, ", "),
	)

	err := db.SelectContext(ctx, &res, query, args...)
	if err != nil && !pgutil.IsNoRows(err) {
		return nil, err
	}
	return res, nil
}

func dbGetAllByOwner(ctx context.Context, db *sqlx.DB, owner string, cursor q.Cursor, limit uint64, direction q.Ordering) ([]*model, error) {
	res := []*model{}

	query := `SELECT ` + allColumns + ` FROM ` + accountTableName + ` WHERE (owner = $1)`

	opts := []interface{}{owner}
	query, opts = q.PaginateQuery(query, opts, cursor, limit, direction)

	err := db.SelectContext(ctx, &res, query, opts...)
	if err != nil {
		return nil, pgutil.CheckNoRows(err, account.ErrNotFound)
	}

	if len(res) == 0 {
		return nil, account.ErrNotFound
	}
	return res, nil
}

func dbCountByOwner(ctx context.Context, db *sqlx.DB, owner string) (uint64, error) {
	var res uint64

	query := `SELECT COUNT(*) FROM ` + accountTableName + ` WHERE owner = $1`

	err := db.GetContext(ctx, &res, query, owner)
	if err != nil {
		return 0, err
	}
	return res, nil
}
