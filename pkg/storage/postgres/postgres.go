package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver.
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/zhangwei5095/metasfresh/internal/build"
	"github.com/zhangwei5095/metasfresh/pkg/logger"
	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
	"github.com/zhangwei5095/metasfresh/pkg/storage/sqlcommon"
)

var tracer = otel.Tracer("dlm/pkg/storage/postgres")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "postgres."+name)
}

const (
	partitionColumnType = "VARCHAR(26)"

	uniqueViolation = "23505"
)

// Datastore provides a PostgreSQL based implementation of [storage.Datastore].
type Datastore struct {
	db               *sql.DB
	dbInfo           *sqlcommon.DBInfo
	logger           logger.Logger
	dbStatsCollector prometheus.Collector
	versionReady     bool
}

// Ensures that Datastore implements the Datastore interface.
var _ storage.Datastore = (*Datastore)(nil)

// PrepareURI applies the username and password of the config, if set, to the uri. Credentials of
// the config take precedence over the ones in the uri.
func PrepareURI(uri string, cfg *sqlcommon.Config) (string, error) {
	if cfg.Username == "" && cfg.Password == "" {
		return uri, nil
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("parse postgres connection uri: %w", err)
	}

	username := ""
	if cfg.Username != "" {
		username = cfg.Username
	} else if parsed.User != nil {
		username = parsed.User.Username()
	}

	switch {
	case cfg.Password != "":
		parsed.User = url.UserPassword(username, cfg.Password)
	case parsed.User != nil:
		if password, ok := parsed.User.Password(); ok {
			parsed.User = url.UserPassword(username, password)
		} else {
			parsed.User = url.User(username)
		}
	default:
		parsed.User = url.User(username)
	}

	return parsed.String(), nil
}

// initDB initializes a new postgres database connection.
func initDB(uri string, cfg *sqlcommon.Config) (*sql.DB, error) {
	uri, err := PrepareURI(uri, cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("pgx", uri)
	if err != nil {
		return nil, fmt.Errorf("initialize postgres connection: %w", err)
	}
	sqlcommon.ApplyPoolConfig(db, cfg)

	return db, nil
}

// New creates a new [Datastore] storage.
func New(uri string, cfg *sqlcommon.Config) (*Datastore, error) {
	db, err := initDB(uri, cfg)
	if err != nil {
		return nil, err
	}

	ds, err := NewWithDB(db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return ds, nil
}

// configureDB waits for the database to accept connections and registers the connection metrics.
func configureDB(db *sql.DB, cfg *sqlcommon.Config) (prometheus.Collector, error) {
	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 1 * time.Minute
	attempt := 1
	err := backoff.Retry(func() error {
		err := db.PingContext(context.Background())
		if err != nil {
			cfg.Logger.Info("waiting for database", zap.Int("attempt", attempt))
			attempt++
			return err
		}
		return nil
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(db, build.ProjectName)
		if err := prometheus.Register(collector); err != nil {
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	return collector, nil
}

// NewWithDB creates a new [Datastore] storage with the provided database connection.
func NewWithDB(db *sql.DB, cfg *sqlcommon.Config) (*Datastore, error) {
	collector, err := configureDB(db, cfg)
	if err != nil {
		return nil, fmt.Errorf("configure db: %w", err)
	}

	stbl := sq.StatementBuilder.PlaceholderFormat(sq.Dollar).RunWith(db)
	dbInfo, err := sqlcommon.NewDBInfo(db, stbl, HandleSQLError, "postgres", loadForeignKeys, cfg)
	if err != nil {
		if collector != nil {
			prometheus.Unregister(collector)
		}
		return nil, err
	}

	return &Datastore{
		db:               db,
		dbInfo:           dbInfo,
		logger:           cfg.Logger,
		dbStatsCollector: collector,
	}, nil
}

// DB returns the underlying connection.
func (s *Datastore) DB() *sql.DB {
	return s.db
}

// Close see [storage.Datastore].Close.
func (s *Datastore) Close() {
	if s.dbStatsCollector != nil {
		prometheus.Unregister(s.dbStatsCollector)
	}
	s.dbInfo.Close()
	s.db.Close()
}

// ReadUnpartitioned see [storage.RecordReader].ReadUnpartitioned.
func (s *Datastore) ReadUnpartitioned(ctx context.Context, table string, options storage.ReadUnpartitionedOptions) (storage.RecordIterator, error) {
	_, span := startTrace(ctx, "ReadUnpartitioned")
	defer span.End()

	return sqlcommon.ReadUnpartitioned(ctx, s.dbInfo, table, options)
}

// ResolveReference see [storage.RecordReader].ResolveReference.
func (s *Datastore) ResolveReference(ctx context.Context, record *storage.Record, ref *refconfig.Reference) (*storage.Record, error) {
	ctx, span := startTrace(ctx, "ResolveReference")
	defer span.End()

	return sqlcommon.ResolveReference(ctx, s.dbInfo, record, ref)
}

// DryRun see [storage.IntegrityChecker].DryRun.
func (s *Datastore) DryRun(ctx context.Context, partition *storage.Partition) (storage.DryRunResult, error) {
	ctx, span := startTrace(ctx, "DryRun")
	defer span.End()

	return sqlcommon.DryRun(ctx, s.dbInfo, partition)
}

// WritePartition see [storage.PartitionWriter].WritePartition.
func (s *Datastore) WritePartition(ctx context.Context, partition *storage.Partition) (*storage.Partition, error) {
	ctx, span := startTrace(ctx, "WritePartition")
	defer span.End()

	return sqlcommon.WritePartition(ctx, s.dbInfo, partition, time.Now().UTC())
}

// ReadPartition see [storage.PartitionReader].ReadPartition.
func (s *Datastore) ReadPartition(ctx context.Context, id string) (*storage.Partition, error) {
	ctx, span := startTrace(ctx, "ReadPartition")
	defer span.End()

	return sqlcommon.ReadPartition(ctx, s.dbInfo, id)
}

// TableID returns the id polymorphic references use for the table, registering it if needed.
func (s *Datastore) TableID(ctx context.Context, table string) (int64, error) {
	ctx, span := startTrace(ctx, "TableID")
	defer span.End()

	return sqlcommon.RegisterTable(ctx, s.dbInfo, table)
}

// EnablePartitioning registers the table and adds the partition column to it.
func (s *Datastore) EnablePartitioning(ctx context.Context, table string) (int64, error) {
	ctx, span := startTrace(ctx, "EnablePartitioning")
	defer span.End()

	id, err := sqlcommon.EnablePartitioning(ctx, s.dbInfo, table, partitionColumnType)
	if err != nil {
		return 0, err
	}
	s.logger.InfoWithContext(ctx, "partitioning enabled", zap.String("table", table))
	return id, nil
}

// IsReady see [sqlcommon.IsReady].
func (s *Datastore) IsReady(ctx context.Context) (storage.ReadinessStatus, error) {
	versionReady, err := sqlcommon.IsReady(ctx, s.versionReady, s.db)
	if err != nil {
		return versionReady, err
	}
	s.versionReady = versionReady.IsReady
	return versionReady, nil
}

// foreignKeysQuery lists the foreign keys of the current schema together with whether both sides
// carry the partition column.
const foreignKeysQuery = `
SELECT kcu.table_name, kcu.column_name, ccu.table_name,
	EXISTS (
		SELECT 1 FROM information_schema.columns c
		WHERE c.table_schema = kcu.table_schema AND c.table_name = kcu.table_name
			AND c.column_name = 'dlm_partition_id'
	),
	EXISTS (
		SELECT 1 FROM information_schema.columns c
		WHERE c.table_schema = ccu.table_schema AND c.table_name = ccu.table_name
			AND c.column_name = 'dlm_partition_id'
	)
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
	ON kcu.constraint_name = tc.constraint_name AND kcu.constraint_schema = tc.constraint_schema
JOIN information_schema.constraint_column_usage ccu
	ON ccu.constraint_name = tc.constraint_name AND ccu.constraint_schema = tc.constraint_schema
WHERE tc.constraint_type = 'FOREIGN KEY'
	AND tc.table_schema = current_schema()
	AND kcu.table_name NOT LIKE 'dlm\_%'
ORDER BY kcu.table_name, kcu.ordinal_position`

func loadForeignKeys(ctx context.Context, db *sql.DB) ([]sqlcommon.ForeignKey, error) {
	rows, err := db.QueryContext(ctx, foreignKeysQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []sqlcommon.ForeignKey
	for rows.Next() {
		var fk sqlcommon.ForeignKey
		err := rows.Scan(
			&fk.ReferencingTable,
			&fk.ReferencingColumn,
			&fk.ReferencedTable,
			&fk.ReferencingPartitionable,
			&fk.ReferencedPartitionable,
		)
		if err != nil {
			return nil, err
		}
		fk.ReferencingTable = strings.ToLower(fk.ReferencingTable)
		fk.ReferencingColumn = strings.ToLower(fk.ReferencingColumn)
		fk.ReferencedTable = strings.ToLower(fk.ReferencedTable)
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// HandleSQLError processes an SQL error and converts it into a more
// specific error type based on the nature of the SQL error.
func HandleSQLError(err error, _ ...interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", storage.ErrCancelled, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return storage.ErrCollision
	}

	return fmt.Errorf("sql error: %w", err)
}
