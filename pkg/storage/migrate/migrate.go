// Package migrate runs the schema migrations of the SQL datastores.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	mysqldriver "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/zhangwei5095/metasfresh/pkg/logger"
)

const DefaultTimeout = time.Minute

var ErrMemoryEngine = errors.New("no migrations to run for `memory` datastore")

// MigrationConfig contains the configuration needed for running migrations.
type MigrationConfig struct {
	Engine   string
	URI      string
	Username string
	Password string

	// TargetVersion is the version to migrate to. Zero applies all migrations.
	TargetVersion int64
	// Timeout bounds the time spent waiting for the database to accept connections.
	Timeout time.Duration
	Verbose bool
	Logger  logger.Logger
}

// DriverName returns the database/sql driver used for the engine.
func DriverName(engine string) (string, error) {
	switch engine {
	case "memory":
		return "", ErrMemoryEngine
	case "mysql":
		return "mysql", nil
	case "postgres":
		return "pgx", nil
	case "sqlite":
		return "sqlite", nil
	case "":
		return "", fmt.Errorf("missing datastore engine type")
	default:
		return "", fmt.Errorf("unknown datastore engine type: %s", engine)
	}
}

// PrepareURI applies the username and password, if set, to the connection uri.
func PrepareURI(engine, uri, username, password string) (string, error) {
	switch engine {
	case "mysql":
		// Parse the database uri with the mysql drivers function for it and update username/password, if set
		dsn, err := mysqldriver.ParseDSN(uri)
		if err != nil {
			return "", fmt.Errorf("invalid database uri: %w", err)
		}
		if username != "" {
			dsn.User = username
		}
		if password != "" {
			dsn.Passwd = password
		}
		return dsn.FormatDSN(), nil

	case "postgres":
		if username == "" && password == "" {
			return uri, nil
		}

		dbURI, err := url.Parse(uri)
		if err != nil {
			return "", fmt.Errorf("invalid database uri: %w", err)
		}
		if username == "" && dbURI.User != nil {
			username = dbURI.User.Username()
		}
		if password == "" && dbURI.User != nil {
			password, _ = dbURI.User.Password()
		}
		dbURI.User = url.UserPassword(username, password)
		return dbURI.String(), nil

	default:
		return uri, nil
	}
}

// RunMigrations connects to the database described by the config, waiting up to the configured
// timeout for it to become available, and applies the registry's migrations. It returns the
// version of the last migration that ran.
func RunMigrations(ctx context.Context, cfg MigrationConfig, migrations *Registry) (int64, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNoopLogger()
	}

	driver, err := DriverName(cfg.Engine)
	if err != nil {
		return 0, err
	}

	uri, err := PrepareURI(cfg.Engine, cfg.URI, cfg.Username, cfg.Password)
	if err != nil {
		return 0, err
	}

	db, err := goose.OpenDBWithDriver(driver, uri)
	if err != nil {
		return 0, fmt.Errorf("failed to open a connection to the datastore: %w", err)
	}
	defer db.Close()

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = cfg.Timeout
	if policy.MaxElapsedTime <= 0 {
		policy.MaxElapsedTime = DefaultTimeout
	}
	err = backoff.Retry(func() error {
		return db.PingContext(ctx)
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to initialize database connection: %w", err)
	}

	version, err := migrations.Run(ctx, db,
		WithTargetVersion(cfg.TargetVersion),
		WithVerbose(cfg.Verbose),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	log.InfoWithContext(ctx, "migration done",
		zap.String("engine", cfg.Engine),
		zap.Int64("version", version),
	)

	return version, nil
}
