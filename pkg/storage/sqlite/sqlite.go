package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/zhangwei5095/metasfresh/internal/build"
	"github.com/zhangwei5095/metasfresh/pkg/logger"
	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
	"github.com/zhangwei5095/metasfresh/pkg/storage/sqlcommon"
)

var tracer = otel.Tracer("dlm/pkg/storage/sqlite")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sqlite."+name)
}

// partitionColumnType is the type of the partition column added by EnablePartitioning.
const partitionColumnType = "TEXT"

// Datastore provides a SQLite based implementation of [storage.Datastore].
type Datastore struct {
	stbl             sq.StatementBuilderType
	db               *sql.DB
	dbInfo           *sqlcommon.DBInfo
	logger           logger.Logger
	dbStatsCollector prometheus.Collector
	versionReady     bool
}

// Ensures that SQLite implements the Datastore interface.
var _ storage.Datastore = (*Datastore)(nil)

// Prepare a raw DSN from config for use with SQLite, specifying defaults for journal mode, busy
// timeout and foreign key enforcement.
func PrepareDSN(uri string) (string, error) {
	query := url.Values{}
	var err error

	if i := strings.Index(uri, "?"); i != -1 {
		query, err = url.ParseQuery(uri[i+1:])
		if err != nil {
			return uri, fmt.Errorf("error parsing dsn: %w", err)
		}

		uri = uri[:i]
	}

	foundJournalMode := false
	foundBusyTimeout := false
	foundForeignKeys := false
	for _, val := range query["_pragma"] {
		switch {
		case strings.HasPrefix(val, "journal_mode"):
			foundJournalMode = true
		case strings.HasPrefix(val, "busy_timeout"):
			foundBusyTimeout = true
		case strings.HasPrefix(val, "foreign_keys"):
			foundForeignKeys = true
		}
	}

	if !foundJournalMode {
		query.Add("_pragma", "journal_mode(WAL)")
	}
	if !foundBusyTimeout {
		query.Add("_pragma", "busy_timeout(100)")
	}
	if !foundForeignKeys {
		query.Add("_pragma", "foreign_keys(1)")
	}

	// Set transaction mode to immediate if not specified
	if !query.Has("_txlock") {
		query.Set("_txlock", "immediate")
	}

	uri += "?" + query.Encode()

	return uri, nil
}

// New creates a new [Datastore] storage.
func New(uri string, cfg *sqlcommon.Config) (*Datastore, error) {
	uri, err := PrepareDSN(uri)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", uri)
	if err != nil {
		return nil, fmt.Errorf("initialize sqlite connection: %w", err)
	}
	sqlcommon.ApplyPoolConfig(db, cfg)

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(db, build.ProjectName)
		if err := prometheus.Register(collector); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	stbl := sq.StatementBuilder.RunWith(db)
	dbInfo, err := sqlcommon.NewDBInfo(db, stbl, HandleSQLError, "sqlite3", loadForeignKeys, cfg)
	if err != nil {
		if collector != nil {
			prometheus.Unregister(collector)
		}
		_ = db.Close()
		return nil, err
	}

	return &Datastore{
		stbl:             stbl,
		db:               db,
		dbInfo:           dbInfo,
		logger:           cfg.Logger,
		dbStatsCollector: collector,
		versionReady:     false,
	}, nil
}

// DB returns the underlying connection, for migrations and tests.
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

	var resolved *storage.Record
	err := busyRetry(func() error {
		var err error
		resolved, err = sqlcommon.ResolveReference(ctx, s.dbInfo, record, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

// DryRun see [storage.IntegrityChecker].DryRun.
func (s *Datastore) DryRun(ctx context.Context, partition *storage.Partition) (storage.DryRunResult, error) {
	ctx, span := startTrace(ctx, "DryRun")
	defer span.End()

	var result storage.DryRunResult
	err := busyRetry(func() error {
		var err error
		result, err = sqlcommon.DryRun(ctx, s.dbInfo, partition)
		return err
	})
	return result, err
}

// WritePartition see [storage.PartitionWriter].WritePartition.
func (s *Datastore) WritePartition(ctx context.Context, partition *storage.Partition) (*storage.Partition, error) {
	ctx, span := startTrace(ctx, "WritePartition")
	defer span.End()

	var stored *storage.Partition
	err := busyRetry(func() error {
		var err error
		stored, err = sqlcommon.WritePartition(ctx, s.dbInfo, partition, time.Now().UTC())
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
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

	var id int64
	err := busyRetry(func() error {
		var err error
		id, err = sqlcommon.RegisterTable(ctx, s.dbInfo, table)
		return err
	})
	return id, err
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

// foreignKeysQuery lists the foreign keys of all user tables together with whether both sides
// carry the partition column.
const foreignKeysQuery = `
SELECT m.name, p."from", p."table",
	EXISTS (SELECT 1 FROM pragma_table_info(m.name) c WHERE c.name = 'dlm_partition_id'),
	EXISTS (SELECT 1 FROM pragma_table_info(p."table") c WHERE c.name = 'dlm_partition_id')
FROM sqlite_master m
JOIN pragma_foreign_key_list(m.name) p
WHERE m.type = 'table' AND m.name NOT LIKE 'dlm\_%' ESCAPE '\'
ORDER BY m.name, p.id`

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

// SQLite will return an SQLITE_BUSY error when the database is locked rather than waiting for the lock.
// This function retries the operation up to maxRetries times before returning the error.
func busyRetry(fn func() error) error {
	const maxRetries = 10
	for retries := 0; ; retries++ {
		err := fn()
		if err == nil {
			return nil
		}

		if isBusyError(err) {
			if retries < maxRetries {
				continue
			}

			return fmt.Errorf("sqlite busy error after %d retries: %w", maxRetries, err)
		}

		return err
	}
}

var busyErrors = map[int]struct{}{
	sqlite3.SQLITE_BUSY_RECOVERY:      {},
	sqlite3.SQLITE_BUSY_SNAPSHOT:      {},
	sqlite3.SQLITE_BUSY_TIMEOUT:       {},
	sqlite3.SQLITE_BUSY:               {},
	sqlite3.SQLITE_LOCKED_SHAREDCACHE: {},
	sqlite3.SQLITE_LOCKED:             {},
}

func isBusyError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	_, ok := busyErrors[sqliteErr.Code()]
	return ok
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

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return storage.ErrCollision
		}
		if isBusyError(err) {
			// keep the driver error so busyRetry can recognize it
			return err
		}
	}

	return fmt.Errorf("sql error: %w", err)
}
