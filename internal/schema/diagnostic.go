package schema

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
)

// Category is the coarse reason a schema fetch failed.
type Category string

const (
	CategoryNetworkUnreachable   Category = "NETWORK_UNREACHABLE"
	CategoryAuthenticationFailed Category = "AUTHENTICATION_FAILED"
	CategoryDatabaseNotFound     Category = "DATABASE_NOT_FOUND"
	CategoryDatabaseEmpty        Category = "DATABASE_EMPTY"
	CategoryPermissionDenied     Category = "PERMISSION_DENIED"
	CategoryUnknown              Category = "UNKNOWN"
)

// DiagnosticError is the only error type returned by Inspector.FetchSchema.
// Message is safe to show to API callers; Err keeps the driver error.
type DiagnosticError struct {
	Category Category
	Message  string
	Err      error
}

func (e *DiagnosticError) Error() string {
	return e.Message
}

func (e *DiagnosticError) Unwrap() error {
	return e.Err
}

// SQL Server native error numbers, as carried by go-mssqldb errors.
var (
	loginErrorNumbers = map[int32]bool{
		18452: true, // login from untrusted domain
		18456: true, // login failed
		18486: true, // account locked out
		18487: true, // password expired
		18488: true, // password must be changed
	}
	networkErrorNumbers = map[int32]bool{
		-2:    true, // timeout expired
		53:    true,
		121:   true,
		1231:  true,
		10053: true,
		10054: true,
		10060: true,
		10061: true,
		11001: true,
	}
	// Missing and forbidden are reported as the same category. At login the
	// driver reports 18456 instead, so these only arrive from queries on an
	// open session.
	notFoundErrorNumbers = map[int32]bool{
		208:  true, // invalid object name
		229:  true, // permission denied on object
		230:  true, // permission denied on column
		262:  true, // permission denied in database
		911:  true, // database does not exist
		916:  true, // principal cannot access database
		4060: true, // cannot open database
	}
)

var (
	loginMarkers    = []string{"login failed"}
	networkMarkers  = []string{"login timeout", "communication link failure", "named pipes", "tcp provider", "unable to open tcp connection", "i/o timeout", "connection refused", "no such host"}
	notFoundMarkers = []string{"cannot open database", "invalid object name"}
)

type sqlErrorNumberer interface {
	SQLErrorNumber() int32
}

// Classify maps a connection or query failure to a Category. A known server
// error number decides first. Otherwise the first matching rule wins: login
// failure, then network, then missing database.
func Classify(err error) Category {
	if err == nil {
		return CategoryUnknown
	}
	if number, ok := errorNumber(err); ok {
		switch {
		case loginErrorNumbers[number]:
			return CategoryAuthenticationFailed
		case networkErrorNumbers[number]:
			return CategoryNetworkUnreachable
		case notFoundErrorNumbers[number]:
			return CategoryDatabaseNotFound
		}
	}

	message := strings.ToLower(err.Error())
	switch {
	case containsAny(message, loginMarkers):
		return CategoryAuthenticationFailed
	case isNetworkError(err), containsAny(message, networkMarkers):
		return CategoryNetworkUnreachable
	case containsAny(message, notFoundMarkers):
		return CategoryDatabaseNotFound
	default:
		return CategoryUnknown
	}
}

func errorNumber(err error) (int32, bool) {
	var numbered sqlErrorNumberer
	if errors.As(err, &numbered) {
		return numbered.SQLErrorNumber(), true
	}
	return 0, false
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func containsAny(message string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}
