package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubPool struct {
	execSQL      []string
	execArgs     [][]any
	execTag      pgconn.CommandTag
	queuedBatch  *pgx.Batch
	batchResults *stubBatchResults
	querySQL     string
	queryArgs    []any
	rowsData     [][]any
	queryRowData []any
	queryRowErr  error
}

func (s *stubPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execSQL = append(s.execSQL, sql)
	s.execArgs = append(s.execArgs, args)
	return s.execTag, nil
}

func (s *stubPool) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	s.queuedBatch = b
	if s.batchResults == nil {
		s.batchResults = &stubBatchResults{}
	}
	return s.batchResults
}

func (s *stubPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	s.querySQL = sql
	s.queryArgs = args
	dataCopy := make([][]any, len(s.rowsData))
	for i := range s.rowsData {
		row := make([]any, len(s.rowsData[i]))
		copy(row, s.rowsData[i])
		dataCopy[i] = row
	}
	return &stubRows{data: dataCopy}, nil
}

func (s *stubPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return &stubRow{data: s.queryRowData, err: s.queryRowErr}
}

type stubBatchResults struct {
	execCalls int
	nextID    int64
}

func (b *stubBatchResults) Exec() (pgconn.CommandTag, error) {
	b.execCalls++
	return pgconn.CommandTag{}, nil
}

func (b *stubBatchResults) Query() (pgx.Rows, error) { return &stubRows{}, nil }

func (b *stubBatchResults) QueryRow() pgx.Row {
	b.nextID++
	return &stubRow{data: []any{b.nextID}}
}

func (b *stubBatchResults) Close() error { return nil }

type stubRows struct {
	data [][]any
	idx  int
}

func (r *stubRows) Close()                                       {}
func (r *stubRows) Err() error                                   { return nil }
func (r *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *stubRows) Values() ([]any, error)                       { return nil, nil }
func (r *stubRows) RawValues() [][]byte                          { return nil }
func (r *stubRows) Conn() *pgx.Conn                              { return nil }

func (r *stubRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.data) {
		return fmt.Errorf("invalid scan index")
	}
	return scanInto(r.data[r.idx-1], dest)
}

type stubRow struct {
	data []any
	err  error
}

func (r *stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.data == nil {
		return pgx.ErrNoRows
	}
	return scanInto(r.data, dest)
}

func scanInto(row []any, dest []any) error {
	for i, d := range dest {
		switch ptr := d.(type) {
		case *int64:
			*ptr = row[i].(int64)
		case *float64:
			*ptr = row[i].(float64)
		case *string:
			*ptr = row[i].(string)
		case *bool:
			*ptr = row[i].(bool)
		case **time.Time:
			if v, ok := row[i].(time.Time); ok {
				*ptr = &v
			} else {
				*ptr = nil
			}
		case *time.Time:
			*ptr = row[i].(time.Time)
		default:
			return fmt.Errorf("unsupported dest type %T", d)
		}
	}
	return nil
}
