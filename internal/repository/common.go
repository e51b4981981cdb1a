// internal/repository/common.go
package repository

import (
	"errors"
	"strings"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func pqStringArray(ss []string) any {
	return pq.Array(ss)
}

// prefixedRecipientColumns qualifies the shared column list with a table
// alias for joined queries.
func prefixedRecipientColumns(alias string) string {
	cols := strings.Split(recipientColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}
