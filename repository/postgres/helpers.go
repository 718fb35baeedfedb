package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// jsonPath renders a dotted field path as a Postgres text[] literal for #> and #>>.
func jsonPath(field string) string {
	return "{" + strings.ReplaceAll(field, ".", ",") + "}"
}
