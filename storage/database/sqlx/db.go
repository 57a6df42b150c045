package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// uniqueViolation is the postgres error code raised when a unique index is
// violated; constraint names map it back to a domain error.
const uniqueViolation = "23505"

func violatedConstraint(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok && string(pqErr.Code) == uniqueViolation {
		return pqErr.Constraint
	}
	return ""
}

// atomic factors the transaction plumbing shared by the repositories: fn runs
// against a tx-bound executor; an error rolls everything back.
func atomic(ctx context.Context, db *sqlx.DB, ext sqlx.ExtContext, fn func(ext sqlx.ExtContext) error) error {
	// already inside a transaction: join it
	if _, ok := ext.(*sqlx.Tx); ok {
		return fn(ext)
	}

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

// trapNoRowsErr maps psql "no rows" err to the provided domain error.
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}
