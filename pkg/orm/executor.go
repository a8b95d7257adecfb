package orm

import (
	"context"
	"database/sql"

	"go.uber.org/zap"
)

// Executor runs statements. *sql.DB, *sql.Tx and *sql.Conn satisfy it.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (f *Factory) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.logger.Debug("ran query", zap.String("sql", query))

	res, err := f.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, ConvertDBError(query, err)
	}
	return res, nil
}

// execAffecting runs query and returns the number of rows it changed
func (f *Factory) execAffecting(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := f.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, ConvertDBError(query, err)
	}
	return n, nil
}

func (f *Factory) query(ctx context.Context, query string, args ...any) ([]map[string]any, error) {
	f.logger.Debug("ran query", zap.String("sql", query))

	rows, err := f.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ConvertDBError(query, err)
	}
	defer rows.Close()

	records, err := scanRows(rows)
	if err != nil {
		return nil, ConvertDBError(query, err)
	}
	return records, nil
}

// scanRows scans every row into a map keyed by column name
func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}

		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		record := make(map[string]any, len(columns))
		for i, col := range columns {
			record[col] = values[i]
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}
