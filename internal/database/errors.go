// internal/database/errors.go
//
// Driver error classification.
//
// Context
// -------
// Handlers never look at driver types.  They ask Classify for a Kind and
// show the matching user message with the matching HTTP status.
//
//	Kind          Status  Message
//	----          ------  -------
//	KindPermission  403   Permission denied, please log in with admin access.
//	KindAuth        401   Authentication required.
//	KindNotFound    404   Record not found.
//	KindForeignKey  409   Cannot perform this operation, related records exist.
//	KindDuplicate   409   This record already exists.
//	KindUnknown     500   underlying message, or a generic fallback
//
// Notes
// -----
// • MySQL, Postgres, and SQLite report the same failures with different
//   codes.  The tables below cover the ones a CRUD admin can actually hit.
package database

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrRecordNotFound is returned by stores when a required row is missing.
var ErrRecordNotFound = errors.New("record not found")

// Kind is the coarse class of a storage failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindPermission
	KindAuth
	KindNotFound
	KindForeignKey
	KindDuplicate
)

func (k Kind) String() string {
	switch k {
	case KindPermission:
		return "permission"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindForeignKey:
		return "foreign_key"
	case KindDuplicate:
		return "duplicate"
	}
	return "unknown"
}

// FallbackMessage is shown when an unclassified error carries no text.
const FallbackMessage = "An unexpected error occurred."

var kindMessages = map[Kind]string{
	KindPermission: "Permission denied, please log in with admin access.",
	KindAuth:       "Authentication required.",
	KindNotFound:   "Record not found.",
	KindForeignKey: "Cannot perform this operation, related records exist.",
	KindDuplicate:  "This record already exists.",
}

// Message returns the fixed user message for k, or FallbackMessage.
func (k Kind) Message() string {
	if msg, ok := kindMessages[k]; ok {
		return msg
	}
	return FallbackMessage
}

var kindStatus = map[Kind]int{
	KindPermission: http.StatusForbidden,
	KindAuth:       http.StatusUnauthorized,
	KindNotFound:   http.StatusNotFound,
	KindForeignKey: http.StatusConflict,
	KindDuplicate:  http.StatusConflict,
}

var (
	mysqlKinds = map[uint16]Kind{
		1062: KindDuplicate,
		1586: KindDuplicate,
		1216: KindForeignKey,
		1217: KindForeignKey,
		1451: KindForeignKey,
		1452: KindForeignKey,
		1044: KindPermission,
		1142: KindPermission,
		1143: KindPermission,
		1045: KindAuth,
	}
	pgKinds = map[string]Kind{
		"23505": KindDuplicate,
		"23503": KindForeignKey,
		"42501": KindPermission,
		"28000": KindAuth,
		"28P01": KindAuth,
	}
	sqliteKinds = map[int]Kind{
		sqlite3.SQLITE_CONSTRAINT_UNIQUE:     KindDuplicate,
		sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY: KindDuplicate,
		sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY: KindForeignKey,
		sqlite3.SQLITE_PERM:                  KindPermission,
		sqlite3.SQLITE_AUTH:                  KindAuth,
	}
)

// Classify maps err onto a Kind.  A nil error is KindUnknown.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, ErrRecordNotFound) {
		return KindNotFound
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		if k, ok := mysqlKinds[myErr.Number]; ok {
			return k
		}
		return KindUnknown
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if k, ok := pgKinds[pgErr.Code]; ok {
			return k
		}
		return KindUnknown
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		if k, ok := sqliteKinds[liteErr.Code()]; ok {
			return k
		}
	}
	return KindUnknown
}

// Message returns the user-facing text for err.
func Message(err error) string {
	if msg, ok := kindMessages[Classify(err)]; ok {
		return msg
	}
	if err == nil || err.Error() == "" {
		return FallbackMessage
	}
	return err.Error()
}

// Status returns the HTTP status that goes with err.
func Status(err error) int {
	if code, ok := kindStatus[Classify(err)]; ok {
		return code
	}
	return http.StatusInternalServerError
}
