package database

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		kind   Kind
		status int
		msg    string
	}{
		{"no rows", sql.ErrNoRows, KindNotFound, http.StatusNotFound, "Record not found."},
		{"wrapped not found", fmt.Errorf("get: %w", ErrRecordNotFound), KindNotFound, http.StatusNotFound, "Record not found."},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, KindDuplicate, http.StatusConflict, "This record already exists."},
		{"mysql fk", fmt.Errorf("delete: %w", &mysql.MySQLError{Number: 1451}), KindForeignKey, http.StatusConflict, "Cannot perform this operation, related records exist."},
		{"mysql denied", &mysql.MySQLError{Number: 1142}, KindPermission, http.StatusForbidden, "Permission denied, please log in with admin access."},
		{"mysql auth", &mysql.MySQLError{Number: 1045}, KindAuth, http.StatusUnauthorized, "Authentication required."},
		{"pg duplicate", &pgconn.PgError{Code: "23505"}, KindDuplicate, http.StatusConflict, "This record already exists."},
		{"pg rls", &pgconn.PgError{Code: "42501"}, KindPermission, http.StatusForbidden, "Permission denied, please log in with admin access."},
		{"unclassified", errors.New("connection reset"), KindUnknown, http.StatusInternalServerError, "connection reset"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.kind {
				t.Errorf("Classify = %v, want %v", got, tc.kind)
			}
			if got := Status(tc.err); got != tc.status {
				t.Errorf("Status = %d, want %d", got, tc.status)
			}
			if got := Message(tc.err); got != tc.msg {
				t.Errorf("Message = %q, want %q", got, tc.msg)
			}
		})
	}
}

func TestMessage_Fallback(t *testing.T) {
	if got := Message(errors.New("")); got != FallbackMessage {
		t.Fatalf("Message = %q, want fallback", got)
	}
}
