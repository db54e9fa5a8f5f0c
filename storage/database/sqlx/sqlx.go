// Package sqlxrepos implements the repositories on postgres with sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/finadmin/core"
)

const uniqueViolation = "23505"

// trapNoRowsErr replaces sql.ErrNoRows with notFound.
func trapNoRowsErr(err, notFound error) error {
	if err == sql.ErrNoRows {
		return notFound
	}
	return err
}

// uniqueConstraint returns the name of the violated unique constraint, if err is one.
func uniqueConstraint(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// likePattern escapes s for a case-insensitive substring match with ILIKE.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func orderBy(ordering []core.DBOrdering) string {
	clauses := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		clauses = append(clauses, ord.String())
	}
	clauses = append(clauses, "id ASC")
	return " ORDER BY " + strings.Join(clauses, ", ")
}

// withTx runs fn in a transaction, rolled back if fn fails.
func withTx(ctx context.Context, db core.DB, fn func(tx core.DBExecutor) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func toInts(arr pq.Int64Array) []int {
	ids := make([]int, 0, len(arr))
	for _, id := range arr {
		ids = append(ids, int(id))
	}
	return ids
}

func toInt64s(ids []int) pq.Int64Array {
	arr := make(pq.Int64Array, 0, len(ids))
	for _, id := range ids {
		arr = append(arr, int64(id))
	}
	return arr
}
