package interval

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/albachteng/crontick/internal/store"
)

// SQLiteStore keeps intervals in the cron_intervals table.
type SQLiteStore struct {
	db  store.TxBeginner
	now func() time.Time
}

func NewSQLiteStore(db store.TxBeginner, opts ...Option) *SQLiteStore {
	o := buildOptions(opts)
	return &SQLiteStore{db: db, now: o.now}
}

// Get reads the stamp for code, inserting one at now if absent. The insert
// ignores conflicts and the read happens in the same transaction, so racing
// callers agree on a single stamp.
func (s *SQLiteStore) Get(ctx context.Context, code string) (time.Time, bool, error) {
	now := s.now().Unix()

	var (
		stamp        int64
		bootstrapped bool
	)
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO cron_intervals (record_code, updated_at) VALUES (?, ?)
			 ON CONFLICT(record_code) DO NOTHING`,
			code, now)
		if err != nil {
			return errors.Wrapf(err, "bootstrap interval %s", code)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			bootstrapped = true
		}

		err = tx.QueryRowContext(ctx,
			`SELECT updated_at FROM cron_intervals WHERE record_code = ?`, code).Scan(&stamp)
		if err != nil {
			return errors.Wrapf(err, "read interval %s", code)
		}
		return nil
	})
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(stamp, 0), bootstrapped, nil
}

// Update upserts the stamp for code to now in one statement.
func (s *SQLiteStore) Update(ctx context.Context, code string) error {
	return s.Set(ctx, code, s.now())
}

// Set upserts an explicit stamp for code in one statement.
func (s *SQLiteStore) Set(ctx context.Context, code string, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cron_intervals (record_code, updated_at) VALUES (?, ?)
		 ON CONFLICT(record_code) DO UPDATE SET updated_at = excluded.updated_at`,
		code, t.Unix())
	if err != nil {
		return errors.Wrapf(err, "update interval %s", code)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record_code, updated_at FROM cron_intervals ORDER BY record_code`)
	if err != nil {
		return nil, errors.Wrap(err, "list intervals")
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r     Record
			stamp int64
		)
		if err := rows.Scan(&r.Code, &stamp); err != nil {
			return nil, errors.Wrap(err, "scan interval")
		}
		r.UpdatedAt = time.Unix(stamp, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}
