package syncer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lib/pq"

	"github.com/Ramsey-B/iris/pkg/provider"
)

// humanizeError rewrites a run failure into guidance an operator can act on.
// Unrecognized errors keep their own text.
func humanizeError(err error) string {
	if err == nil {
		return ""
	}

	var syncErr *Error
	if errors.As(err, &syncErr) {
		return syncErr.Message
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return "The sync took longer than the configured maximum run duration and was stopped. Increase SYNC_MAX_RUN_DURATION or check provider and database latency."
	}
	if errors.Is(err, context.Canceled) {
		return "The sync was cancelled before it finished. Run it again."
	}

	var providerErr *provider.Error
	if errors.As(err, &providerErr) {
		return humanizeProviderError(providerErr)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return humanizePostgresError(pqErr)
	}

	if errors.Is(err, sql.ErrConnDone) {
		return "The database connection was closed during the sync. Check that the database is reachable and run the sync again."
	}

	message := err.Error()
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "connection refused"):
		return "Could not connect to the database: the connection was refused. Check that the database is running and that DATABASE_URL points at it."
	case strings.Contains(lower, "password authentication failed"):
		return "The database rejected the configured credentials. Check the user and password in DATABASE_URL."
	case strings.Contains(lower, "no such host"):
		return "A configured host name could not be resolved. Check OKTA_DOMAIN and DATABASE_URL."
	}
	return message
}

func humanizeProviderError(err *provider.Error) string {
	switch {
	case err.StatusCode == 0:
		return fmt.Sprintf("Could not reach Okta: %v. Check OKTA_DOMAIN and network access to the provider.", err.Err)
	case err.StatusCode == http.StatusUnauthorized:
		return "Okta rejected the API token. Check that OKTA_API_TOKEN is valid and has not expired."
	case err.StatusCode == http.StatusForbidden:
		return "The Okta API token does not have permission to read users and applications. Use a token from a read-only admin."
	case err.StatusCode == http.StatusTooManyRequests:
		return "Okta rate limited the sync. Wait a few minutes and run it again, or lower OKTA_RATE_LIMIT."
	default:
		return fmt.Sprintf("Okta returned an unexpected response (HTTP %d). Try again later.", err.StatusCode)
	}
}

func humanizePostgresError(err *pq.Error) string {
	switch err.Code {
	case "42P01":
		return "The database schema is missing tables. Run the database migrations and try again."
	case "28P01", "28000":
		return "The database rejected the configured credentials. Check the user and password in DATABASE_URL."
	case "3D000":
		return "The database named in DATABASE_URL does not exist."
	case "53300":
		return "The database has too many open connections. Try again shortly."
	}
	return fmt.Sprintf("The database returned an error (%s): %s", err.Code.Name(), err.Message)
}
