package pointsdb

import (
	"context"

	"github.com/uptrace/bun"
)

// maxBulkRows keeps a single multi-row insert well under Postgres' 65535
// bind parameter limit for the widest model in this package.
const maxBulkRows = 1000

// bulkInsert inserts rows through bun slice models in chunks. Columns and
// placeholders come from the model definition; build may add ON CONFLICT
// or RETURNING clauses and must execute the query.
func bulkInsert[T any](
	ctx context.Context,
	db bun.IDB,
	rows []*T,
	build func(ctx context.Context, q *bun.InsertQuery) error,
) error {
	for start := 0; start < len(rows); start += maxBulkRows {
		end := min(start+maxBulkRows, len(rows))
		chunk := rows[start:end]
		if err := build(ctx, db.NewInsert().Model(&chunk)); err != nil {
			return err
		}
	}
	return nil
}

// chunks splits items for IN (...) lists.
func chunks[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	out := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
