package repository

import (
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// psql builds statements with PostgreSQL $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func isForeignKeyViolation(err error) bool {
	return isPgCode(err, pgerrcode.ForeignKeyViolation)
}

func isCheckViolation(err error) bool {
	return isPgCode(err, pgerrcode.CheckViolation)
}
