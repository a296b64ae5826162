package storage

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/require"

	"github.com/zhangwei5095/metasfresh/pkg/storage/migrate"
)

// startupTimeout bounds how long a freshly started server may take to accept connections.
const startupTimeout = time.Minute

// waitForDatabase opens a connection to the database and pings it until it is ready or a timeout
// occurs.
func waitForDatabase(driverName, uri string) (*sql.DB, error) {
	db, err := goose.OpenDBWithDriver(driverName, uri)
	if err != nil {
		return nil, fmt.Errorf("open connection to %s: %w", driverName, err)
	}

	backoffPolicy := backoff.NewExponentialBackOff()
	backoffPolicy.MaxElapsedTime = startupTimeout
	if err := backoff.Retry(db.Ping, backoffPolicy); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driverName, err)
	}

	return db, nil
}

// migrateDatabase runs all migrations of the registry and returns the resulting version.
func migrateDatabase(t testing.TB, driverName, uri string, migrations *migrate.Registry) int64 {
	db, err := waitForDatabase(driverName, uri)
	require.NoError(t, err)
	defer db.Close()

	version, err := migrations.Run(context.Background(), db)
	require.NoError(t, err)
	return version
}
