package schema

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	mssql "github.com/microsoft/go-mssqldb"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{name: "nil", err: nil, want: CategoryUnknown},
		{name: "login number", err: mssql.Error{Number: 18456, Message: "Login failed for user 'sa'."}, want: CategoryAuthenticationFailed},
		{name: "wrapped login number", err: fmt.Errorf("connect to sql server: %w", mssql.Error{Number: 18487, Message: "password expired"}), want: CategoryAuthenticationFailed},
		{name: "login marker wins over network marker", err: errors.New("[08S01] Communication link failure; Login failed for user 'sa'"), want: CategoryAuthenticationFailed},
		{name: "missing database at login", err: fmt.Errorf("connect to sql server: %w", mssql.Error{Number: 18456, Message: "Login failed for user 'reporter'."}), want: CategoryAuthenticationFailed},
		{name: "cannot open database number", err: mssql.Error{Number: 4060, Message: "Cannot open database \"X\" requested by the login. The login failed."}, want: CategoryDatabaseNotFound},
		{name: "access denied to database", err: mssql.Error{Number: 916, Message: "not able to access the database"}, want: CategoryDatabaseNotFound},
		{name: "timeout number", err: mssql.Error{Number: -2, Message: "Timeout expired"}, want: CategoryNetworkUnreachable},
		{name: "net error", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, want: CategoryNetworkUnreachable},
		{name: "deadline", err: fmt.Errorf("ping: %w", context.DeadlineExceeded), want: CategoryNetworkUnreachable},
		{name: "tcp provider marker", err: errors.New("TCP Provider: No connection could be made"), want: CategoryNetworkUnreachable},
		{name: "invalid object marker", err: errors.New("Invalid object name 'INFORMATION_SCHEMA.TABLES'"), want: CategoryDatabaseNotFound},
		{name: "unrecognized number", err: mssql.Error{Number: 102, Message: "Incorrect syntax"}, want: CategoryUnknown},
		{name: "unknown", err: errors.New("something else"), want: CategoryUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Fatalf("Classify() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestDiagnosticErrorUnwraps(t *testing.T) {
	cause := errors.New("driver failure")
	err := error(&DiagnosticError{Category: CategoryUnknown, Message: "database connection/query error", Err: cause})
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is() = false, want true")
	}
	if err.Error() != "database connection/query error" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
