package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/pressly/goose/v3"
)

type migrationFunc = func(ctx context.Context, tx *sql.Tx) error

type Migration struct {
	Version  int64
	Forward  migrationFunc
	Backward migrationFunc
}

// Registry holds the schema migrations of one engine.
type Registry struct {
	dialect goose.Dialect

	Migrations map[int64]*Migration
}

func (r *Registry) MustRegister(m *Migration) {
	if _, ok := r.Migrations[m.Version]; ok {
		panic(fmt.Errorf("migration with version %d already registered", m.Version))
	}
	r.Migrations[m.Version] = m
}

// Versions returns the registered versions in ascending order.
func (r *Registry) Versions() []int64 {
	versions := make([]int64, 0, len(r.Migrations))
	for v := range r.Migrations {
		versions = append(versions, v)
	}
	slices.Sort(versions)
	return versions
}

type runConfig struct {
	verbose       bool
	targetVersion int64
}

type runOption func(*runConfig)

func WithVerbose(v bool) runOption {
	return func(c *runConfig) {
		c.verbose = v
	}
}

// WithTargetVersion migrates up or down to the given version. Zero applies all migrations.
func WithTargetVersion(v int64) runOption {
	return func(c *runConfig) {
		c.targetVersion = v
	}
}

func (r *Registry) provider(db *sql.DB, verbose bool) (*goose.Provider, error) {
	var migrations []*goose.Migration
	for _, v := range r.Versions() {
		m := r.Migrations[v]
		migrations = append(migrations, goose.NewGoMigration(
			m.Version, &goose.GoFunc{RunTx: m.Forward}, &goose.GoFunc{RunTx: m.Backward}),
		)
	}

	return goose.NewProvider(r.dialect, db, nil,
		goose.WithDisableGlobalRegistry(true),
		goose.WithVerbose(verbose),
		goose.WithGoMigrations(migrations...),
	)
}

// Run applies the migrations and returns the version of the last migration that ran, or zero
// if there was nothing to do.
func (r *Registry) Run(ctx context.Context, db *sql.DB, opts ...runOption) (int64, error) {
	cfg := &runConfig{
		targetVersion: 0,
		verbose:       false,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	provider, err := r.provider(db, cfg.verbose)
	if err != nil {
		return 0, err
	}

	var results []*goose.MigrationResult

	if cfg.targetVersion == 0 {
		results, err = provider.Up(ctx)
		if err != nil {
			return 0, err
		}
	} else {
		currentVersion, err := provider.GetDBVersion(ctx)
		if err != nil {
			return 0, err
		}

		if cfg.targetVersion < currentVersion {
			results, err = provider.DownTo(ctx, cfg.targetVersion)
			if err != nil {
				return 0, err
			}
		} else if cfg.targetVersion > currentVersion {
			results, err = provider.UpTo(ctx, cfg.targetVersion)
			if err != nil {
				return 0, err
			}
		}
	}

	if len(results) > 0 {
		if lastResult := results[len(results)-1]; lastResult != nil {
			return lastResult.Source.Version, nil
		}
	}

	return 0, nil
}

// CurrentVersion returns the schema version of the database.
func (r *Registry) CurrentVersion(ctx context.Context, db *sql.DB) (int64, error) {
	provider, err := r.provider(db, false)
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}

func NewRegistry(engine string) *Registry {
	var dialect goose.Dialect

	switch engine {
	case "mysql":
		dialect = goose.DialectMySQL
	case "postgres":
		dialect = goose.DialectPostgres
	case "sqlite":
		dialect = goose.DialectSQLite3
	default:
		panic(fmt.Errorf("unknown datastore engine type: %s", engine))
	}

	return &Registry{
		dialect:    dialect,
		Migrations: make(map[int64]*Migration, 0),
	}
}
