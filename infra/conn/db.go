package conn

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/mstgnz/paybox/infra/logger"
)

// Driver names accepted by database/sql
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// PostgresDSN builds the connection string from DB_* environment variables
func PostgresDSN() string {
	zone := os.Getenv("DB_ZONE")
	if zone == "" {
		zone = "UTC"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=%s",
		os.Getenv("DB_HOST"), os.Getenv("DB_PORT"), os.Getenv("DB_USER"),
		os.Getenv("DB_PASS"), os.Getenv("DB_NAME"), zone)
}

// ConnectPostgres opens a pooled postgres connection, retrying the ping a few
// times while the database comes up.
func ConnectPostgres(ctx context.Context, dsn string, attempts int) (*sql.DB, error) {
	if attempts <= 0 {
		attempts = 5
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		database, err := sql.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres connection: %w", err)
		}

		database.SetMaxOpenConns(25)
		database.SetMaxIdleConns(5)
		database.SetConnMaxLifetime(5 * time.Minute)
		database.SetConnMaxIdleTime(2 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		lastErr = database.PingContext(pingCtx)
		cancel()

		if lastErr == nil {
			logger.Info("Postgres connected", logger.LogContext{
				Fields: map[string]any{"attempt": attempt},
			})
			return database, nil
		}

		logger.Warn("Failed to ping postgres", logger.LogContext{
			Fields: map[string]any{"attempt": attempt, "error": lastErr.Error()},
		})
		database.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}

	return nil, fmt.Errorf("failed to connect to postgres after %d attempts: %w", attempts, lastErr)
}

// Rebind converts '?' placeholders to the driver's bind style.
// Postgres uses $1..$n; every other driver keeps '?'.
func Rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}

	var (
		b strings.Builder
		n int
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
