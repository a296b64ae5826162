package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-sql-driver/mysql"
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

var tracer = otel.Tracer("dlm/pkg/storage/mysql")

func startTrace(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "mysql."+name)
}

const (
	partitionColumnType = "VARCHAR(26)"

	errDuplicateEntry = 1062
)

// Datastore provides a MySQL based implementation of [storage.Datastore].
type Datastore struct {
	db               *sql.DB
	dbInfo           *sqlcommon.DBInfo
	logger           logger.Logger
	dbStatsCollector prometheus.Collector
	versionReady     bool
}

var _ storage.Datastore = (*Datastore)(nil)

// PrepareDSN applies the username and password of the config, if set, to the dsn.
func PrepareDSN(uri string, cfg *sqlcommon.Config) (string, error) {
	if cfg.Username == "" && cfg.Password == "" {
		return uri, nil
	}

	dsnCfg, err := mysql.ParseDSN(uri)
	if err != nil {
		return "", fmt.Errorf("failed to parse mysql connection dsn: %w", err)
	}

	if cfg.Username != "" {
		dsnCfg.User = cfg.Username
	}
	if cfg.Password != "" {
		dsnCfg.Passwd = cfg.Password
	}

	return dsnCfg.FormatDSN(), nil
}

// New creates a new [Datastore] storage, waiting up to a minute for the server to accept connections.
func New(uri string, cfg *sqlcommon.Config) (*Datastore, error) {
	uri, err := PrepareDSN(uri, cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mysql connection: %w", err)
	}
	sqlcommon.ApplyPoolConfig(db, cfg)

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 1 * time.Minute
	attempt := 1
	err = backoff.Retry(func() error {
		err := db.PingContext(context.Background())
		if err != nil {
			cfg.Logger.Info("waiting for mysql", zap.Int("attempt", attempt))
			attempt++
			return err
		}
		return nil
	}, policy)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize mysql connection: %w", err)
	}

	var collector prometheus.Collector
	if cfg.ExportMetrics {
		collector = collectors.NewDBStatsCollector(db, build.ProjectName)
		if err := prometheus.Register(collector); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialize metrics: %w", err)
		}
	}

	stbl := sq.StatementBuilder.RunWith(db)
	dbInfo, err := sqlcommon.NewDBInfo(db, stbl, HandleSQLError, "mysql", loadForeignKeys, cfg)
	if err != nil {
		if collector != nil {
			prometheus.Unregister(collector)
		}
		_ = db.Close()
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
func (m *Datastore) DB() *sql.DB {
	return m.db
}

// Close closes the datastore and cleans up any residual resources.
func (m *Datastore) Close() {
	if m.dbStatsCollector != nil {
		prometheus.Unregister(m.dbStatsCollector)
	}
	m.dbInfo.Close()
	m.db.Close()
}

func (m *Datastore) ReadUnpartitioned(ctx context.Context, table string, options storage.ReadUnpartitionedOptions) (storage.RecordIterator, error) {
	_, span := startTrace(ctx, "ReadUnpartitioned")
	defer span.End()

	return sqlcommon.ReadUnpartitioned(ctx, m.dbInfo, table, options)
}

func (m *Datastore) ResolveReference(ctx context.Context, record *storage.Record, ref *refconfig.Reference) (*storage.Record, error) {
	ctx, span := startTrace(ctx, "ResolveReference")
	defer span.End()

	return sqlcommon.ResolveReference(ctx, m.dbInfo, record, ref)
}

func (m *Datastore) DryRun(ctx context.Context, partition *storage.Partition) (storage.DryRunResult, error) {
	ctx, span := startTrace(ctx, "DryRun")
	defer span.End()

	return sqlcommon.DryRun(ctx, m.dbInfo, partition)
}

func (m *Datastore) WritePartition(ctx context.Context, partition *storage.Partition) (*storage.Partition, error) {
	ctx, span := startTrace(ctx, "WritePartition")
	defer span.End()

	return sqlcommon.WritePartition(ctx, m.dbInfo, partition, time.Now().UTC())
}

func (m *Datastore) ReadPartition(ctx context.Context, id string) (*storage.Partition, error) {
	ctx, span := startTrace(ctx, "ReadPartition")
	defer span.End()

	return sqlcommon.ReadPartition(ctx, m.dbInfo, id)
}

func (m *Datastore) TableID(ctx context.Context, table string) (int64, error) {
	ctx, span := startTrace(ctx, "TableID")
	defer span.End()

	return sqlcommon.RegisterTable(ctx, m.dbInfo, table)
}

func (m *Datastore) EnablePartitioning(ctx context.Context, table string) (int64, error) {
	ctx, span := startTrace(ctx, "EnablePartitioning")
	defer span.End()

	id, err := sqlcommon.EnablePartitioning(ctx, m.dbInfo, table, partitionColumnType)
	if err != nil {
		return 0, err
	}
	m.logger.InfoWithContext(ctx, "partitioning enabled", zap.String("table", table))
	return id, nil
}

// IsReady see [sqlcommon.IsReady].
func (m *Datastore) IsReady(ctx context.Context) (storage.ReadinessStatus, error) {
	versionReady, err := sqlcommon.IsReady(ctx, m.versionReady, m.db)
	if err != nil {
		return versionReady, err
	}
	m.versionReady = versionReady.IsReady
	return versionReady, nil
}

const foreignKeysQuery = `
SELECT k.table_name, k.column_name, k.referenced_table_name,
	EXISTS (
		SELECT 1 FROM information_schema.columns c
		WHERE c.table_schema = k.table_schema AND c.table_name = k.table_name
			AND c.column_name = 'dlm_partition_id'
	),
	EXISTS (
		SELECT 1 FROM information_schema.columns c
		WHERE c.table_schema = k.referenced_table_schema AND c.table_name = k.referenced_table_name
			AND c.column_name = 'dlm_partition_id'
	)
FROM information_schema.key_column_usage k
WHERE k.table_schema = DATABASE()
	AND k.referenced_table_name IS NOT NULL
	AND k.table_name NOT LIKE 'dlm\_%'
ORDER BY k.table_name, k.ordinal_position`

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

	var me *mysql.MySQLError
	if errors.As(err, &me) && me.Number == errDuplicateEntry {
		return storage.ErrCollision
	}

	return fmt.Errorf("sql error: %w", err)
}
