package queue

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/albachteng/crontick/internal/jobs"
	"github.com/albachteng/crontick/internal/store"
)

// SQLiteQueue keeps jobs in the job_queue table.
type SQLiteQueue struct {
	db  store.TxBeginner
	now func() time.Time
}

func NewSQLiteQueue(db store.TxBeginner, opts ...Option) *SQLiteQueue {
	o := buildOptions(opts)
	return &SQLiteQueue{db: db, now: o.now}
}

// Enqueue appends a job. Duplicate handler/args pairs are allowed.
func (q *SQLiteQueue) Enqueue(ctx context.Context, handlerName string, args jobs.Args) (jobs.JobID, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validateName(handlerName); err != nil {
		return 0, err
	}

	payload, err := jobs.EncodeArgs(args)
	if err != nil {
		return 0, errors.Wrapf(err, "encode args for %s", handlerName)
	}

	res, err := q.db.ExecContext(ctx,
		`INSERT INTO job_queue (handler_name, param_data, created_at) VALUES (?, ?, ?)`,
		handlerName, payload, q.now().Unix())
	if err != nil {
		return 0, errors.Wrapf(err, "enqueue %s", handlerName)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "read job id")
	}
	return jobs.JobID(id), nil
}

// DequeueBatch selects the oldest jobs and deletes them in the same
// transaction before returning them.
func (q *SQLiteQueue) DequeueBatch(ctx context.Context, limit int) ([]*jobs.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []*jobs.Record
	err := store.WithTx(ctx, q.db, func(tx *sql.Tx) error {
		var err error
		records, err = selectRecords(ctx, tx, batchLimit(limit))
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return nil
		}

		ids := make([]any, len(records))
		for i, r := range records {
			ids[i] = int64(r.ID)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
		_, err = tx.ExecContext(ctx, `DELETE FROM job_queue WHERE id IN (`+placeholders+`)`, ids...)
		if err != nil {
			return errors.Wrap(err, "delete claimed jobs")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (q *SQLiteQueue) Len(ctx context.Context) (int, error) {
	var n int
	if err := q.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_queue`).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count jobs")
	}
	return n, nil
}

// List returns pending jobs in dequeue order without claiming them.
// A limit <= 0 returns all of them.
func (q *SQLiteQueue) List(ctx context.Context, limit int) ([]*jobs.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	return selectRecords(ctx, q.db, limit)
}

func selectRecords(ctx context.Context, db store.Querier, limit int) ([]*jobs.Record, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, handler_name, param_data, created_at
		 FROM job_queue
		 ORDER BY created_at ASC, id ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select jobs")
	}
	defer func() {
		_ = rows.Close() //nolint:errcheck
	}()

	var records []*jobs.Record
	for rows.Next() {
		var (
			r       jobs.Record
			id      int64
			payload []byte
			created int64
		)
		if err := rows.Scan(&id, &r.HandlerName, &payload, &created); err != nil {
			return nil, errors.Wrap(err, "scan job")
		}
		r.ID = jobs.JobID(id)
		r.Params = append([]byte(nil), payload...)
		r.CreatedAt = time.Unix(created, 0)
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate jobs")
	}
	return records, nil
}
