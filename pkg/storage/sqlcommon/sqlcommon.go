// Package sqlcommon implements the datastore operations shared by the SQL engines.
//
// Partitionable tables have an integer key column named <table>_id and a nullable
// dlm_partition_id column. Polymorphic references use ad_table_id, the id of the referenced
// table in dlm_table.
package sqlcommon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zhangwei5095/metasfresh/internal/build"
	"github.com/zhangwei5095/metasfresh/pkg/logger"
	"github.com/zhangwei5095/metasfresh/pkg/refconfig"
	"github.com/zhangwei5095/metasfresh/pkg/storage"
)

var tracer = otel.Tracer("dlm/pkg/storage/sqlcommon")

const (
	TableDirectoryTable   = "dlm_table"
	PartitionTable        = "dlm_partition"
	PartitionRecordsTable = "dlm_partition_record"

	defaultTableCacheSize     = 1000
	defaultForeignKeyCacheTTL = time.Minute

	// DefaultMaxParamsPerStatement stays well below the smallest parameter limit of the
	// supported drivers (sqlite: 32766, mysql and postgres: 65535).
	DefaultMaxParamsPerStatement = 1000

	// columns bound per dlm_partition_record row
	partitionRecordParams = 3
	foreignKeysCacheKey       = "foreign_keys"
)

// Config defines the configuration parameters
// for setting up and managing a sql connection.
type Config struct {
	Username string
	Password string
	Logger   logger.Logger

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration

	// TableCacheSize bounds the number of dlm_table entries kept in memory.
	TableCacheSize int64
	// ForeignKeyCacheTTL is how long the foreign keys read from the catalog are reused.
	ForeignKeyCacheTTL time.Duration

	// MaxParamsPerStatement bounds the number of values bound into one statement. Id lists of
	// larger partitions are split into several statements.
	MaxParamsPerStatement int

	ExportMetrics bool
}

// DatastoreOption defines a function type
// used for configuring a Config object.
type DatastoreOption func(*Config)

// WithUsername returns a DatastoreOption that sets the username in the Config.
func WithUsername(username string) DatastoreOption {
	return func(config *Config) {
		config.Username = username
	}
}

// WithPassword returns a DatastoreOption that sets the password in the Config.
func WithPassword(password string) DatastoreOption {
	return func(config *Config) {
		config.Password = password
	}
}

// WithLogger returns a DatastoreOption that sets the Logger in the Config.
func WithLogger(l logger.Logger) DatastoreOption {
	return func(cfg *Config) {
		cfg.Logger = l
	}
}

// WithMaxOpenConns returns a DatastoreOption that sets the
// maximum number of open connections in the Config.
func WithMaxOpenConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxOpenConns = c
	}
}

// WithMaxIdleConns returns a DatastoreOption that sets the
// maximum number of idle connections in the Config.
func WithMaxIdleConns(c int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxIdleConns = c
	}
}

// WithConnMaxIdleTime returns a DatastoreOption that sets
// the maximum idle time for a connection in the Config.
func WithConnMaxIdleTime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxIdleTime = d
	}
}

// WithConnMaxLifetime returns a DatastoreOption that sets
// the maximum lifetime for a connection in the Config.
func WithConnMaxLifetime(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ConnMaxLifetime = d
	}
}

func WithTableCacheSize(n int64) DatastoreOption {
	return func(cfg *Config) {
		cfg.TableCacheSize = n
	}
}

// WithForeignKeyCacheTTL returns a DatastoreOption that sets how long foreign keys read from
// the database catalog are reused. A negative value disables the cache.
func WithForeignKeyCacheTTL(d time.Duration) DatastoreOption {
	return func(cfg *Config) {
		cfg.ForeignKeyCacheTTL = d
	}
}

// WithMaxParamsPerStatement returns a DatastoreOption that sets the number of values bound into
// one statement at most.
func WithMaxParamsPerStatement(n int) DatastoreOption {
	return func(cfg *Config) {
		cfg.MaxParamsPerStatement = n
	}
}

// WithMetrics returns a DatastoreOption that
// enables the export of metrics in the Config.
func WithMetrics() DatastoreOption {
	return func(cfg *Config) {
		cfg.ExportMetrics = true
	}
}

// NewConfig creates a new Config instance with default values
// and applies any provided DatastoreOption modifications.
func NewConfig(opts ...DatastoreOption) *Config {
	cfg := &Config{}

	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.Logger == nil {
		cfg.Logger = logger.NewNoopLogger()
	}

	if cfg.TableCacheSize == 0 {
		cfg.TableCacheSize = defaultTableCacheSize
	}

	if cfg.ForeignKeyCacheTTL == 0 {
		cfg.ForeignKeyCacheTTL = defaultForeignKeyCacheTTL
	}

	if cfg.MaxParamsPerStatement <= 0 {
		cfg.MaxParamsPerStatement = DefaultMaxParamsPerStatement
	}

	return cfg
}

// ForeignKey is a foreign key declared in the database catalog, together with whether the two
// tables carry the partition column.
type ForeignKey struct {
	refconfig.TableReferenceDescriptor

	ReferencingPartitionable bool
	ReferencedPartitionable  bool
}

// ForeignKeyLoader reads the foreign keys of the current database or schema. Names are returned
// lower-cased and the bookkeeping tables are left out.
type ForeignKeyLoader func(ctx context.Context, db *sql.DB) ([]ForeignKey, error)

// DBInfo encapsulates DB information for use in common method.
type DBInfo struct {
	db             *sql.DB
	stbl           sq.StatementBuilderType
	HandleSQLError errorHandlerFn
	loadFKs        ForeignKeyLoader

	tableNames  storage.InMemoryCache[string]
	foreignKeys storage.InMemoryCache[[]ForeignKey]
	fkCacheTTL  time.Duration

	maxParams int
}

type errorHandlerFn func(error, ...interface{}) error

// NewDBInfo constructs a [DBInfo] object.
func NewDBInfo(
	db *sql.DB,
	stbl sq.StatementBuilderType,
	errorHandler errorHandlerFn,
	dialect string,
	loadFKs ForeignKeyLoader,
	cfg *Config,
) (*DBInfo, error) {
	if err := goose.SetDialect(dialect); err != nil {
		panic("failed to set database dialect: " + err.Error())
	}

	tableNames, err := storage.NewInMemoryLRUCache(storage.WithMaxCacheSize[string](cfg.TableCacheSize))
	if err != nil {
		return nil, fmt.Errorf("initialize table cache: %w", err)
	}

	foreignKeys, err := storage.NewInMemoryLRUCache(storage.WithMaxCacheSize[[]ForeignKey](10))
	if err != nil {
		tableNames.Stop()
		return nil, fmt.Errorf("initialize foreign key cache: %w", err)
	}

	return &DBInfo{
		db:             db,
		stbl:           stbl,
		HandleSQLError: errorHandler,
		loadFKs:        loadFKs,
		tableNames:     tableNames,
		foreignKeys:    foreignKeys,
		fkCacheTTL:     cfg.ForeignKeyCacheTTL,
		maxParams:      max(cfg.MaxParamsPerStatement, partitionRecordParams),
	}, nil
}

// Close releases the caches. The connection is owned by the caller.
func (d *DBInfo) Close() {
	d.tableNames.Stop()
	d.foreignKeys.Stop()
}

// ApplyPoolConfig sets the connection pool limits of the config on the connection.
func ApplyPoolConfig(db *sql.DB, cfg *Config) {
	if cfg.MaxOpenConns != 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns != 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime != 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime != 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// identifier returns the lower-cased name if it can be used unquoted in a statement.
func identifier(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidIdentifier, name)
	}
	return strings.ToLower(name), nil
}

// KeyColumn returns the name of the key column of the table.
func KeyColumn(table string) string {
	return strings.ToLower(table) + "_id"
}

// SQLRecordIterator is a struct that implements the storage.RecordIterator
// interface for iterating over the keys of one table fetched from a SQL database.
type SQLRecordIterator struct {
	rows           *sql.Rows // GUARDED_BY(mu)
	sb             sq.SelectBuilder
	table          string
	handleSQLError errorHandlerFn
	mu             sync.Mutex
}

// Ensures that SQLRecordIterator implements the RecordIterator interface.
var _ storage.RecordIterator = (*SQLRecordIterator)(nil)

// NewSQLRecordIterator returns a SQL record iterator. The query must select the key column only.
func NewSQLRecordIterator(sb sq.SelectBuilder, table string, errHandler errorHandlerFn) *SQLRecordIterator {
	return &SQLRecordIterator{
		sb:             sb,
		table:          table,
		handleSQLError: errHandler,
	}
}

func (t *SQLRecordIterator) fetchBuffer(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "sqlcommon.fetchBuffer", trace.WithAttributes(attribute.String("table", t.table)))
	defer span.End()
	ctx = context.WithoutCancel(ctx)
	rows, err := t.sb.QueryContext(ctx)
	if err != nil {
		return t.handleSQLError(err)
	}
	t.rows = rows
	return nil
}

// Next see [storage.Iterator].Next.
func (t *SQLRecordIterator) Next(ctx context.Context) (*storage.Record, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.rows == nil {
		if err := t.fetchBuffer(ctx); err != nil {
			return nil, err
		}
	}

	if !t.rows.Next() {
		if err := t.rows.Err(); err != nil {
			return nil, t.handleSQLError(err)
		}
		return nil, storage.ErrIteratorDone
	}

	record := storage.Record{Table: t.table}
	if err := t.rows.Scan(&record.ID); err != nil {
		return nil, t.handleSQLError(err)
	}
	return &record, nil
}

// Stop terminates iteration.
func (t *SQLRecordIterator) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.rows != nil {
		_ = t.rows.Close()
	}
}

// ReadUnpartitioned see [storage.RecordReader].ReadUnpartitioned.
func ReadUnpartitioned(
	_ context.Context,
	dbInfo *DBInfo,
	table string,
	opts storage.ReadUnpartitionedOptions,
) (storage.RecordIterator, error) {
	name, err := identifier(table)
	if err != nil {
		return nil, err
	}

	sb := dbInfo.stbl.
		Select(KeyColumn(name)).
		From(name).
		Where(sq.Eq{storage.PartitionColumn: nil})
	if opts.OldestFirst {
		sb = sb.OrderBy(KeyColumn(name))
	}

	return NewSQLRecordIterator(sb, table, dbInfo.HandleSQLError), nil
}

// ResolveReference see [storage.RecordReader].ResolveReference.
func ResolveReference(
	ctx context.Context,
	dbInfo *DBInfo,
	record *storage.Record,
	ref *refconfig.Reference,
) (*storage.Record, error) {
	source, err := identifier(record.Table)
	if err != nil {
		return nil, err
	}
	column, err := identifier(ref.ReferencingColumn())
	if err != nil {
		return nil, err
	}
	target, err := identifier(ref.ReferencedTable())
	if err != nil {
		return nil, err
	}

	var targetID sql.NullInt64
	if ref.IsPolymorphic() {
		var tableID sql.NullInt64
		err = dbInfo.stbl.
			Select(column, refconfig.GenericTableColumn).
			From(source).
			Where(sq.Eq{KeyColumn(source): record.ID}).
			QueryRowContext(ctx).
			Scan(&targetID, &tableID)
		if err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
		if !tableID.Valid {
			return nil, storage.ErrNotFound
		}

		name, err := dbInfo.tableName(ctx, tableID.Int64)
		if err != nil {
			return nil, err
		}
		if !strings.EqualFold(name, target) {
			return nil, storage.ErrNotFound
		}
	} else {
		err = dbInfo.stbl.
			Select(column).
			From(source).
			Where(sq.Eq{KeyColumn(source): record.ID}).
			QueryRowContext(ctx).
			Scan(&targetID)
		if err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
	}

	if !targetID.Valid {
		return nil, storage.ErrNotFound
	}

	var partitionID sql.NullString
	err = dbInfo.stbl.
		Select(storage.PartitionColumn).
		From(target).
		Where(sq.Eq{KeyColumn(target): targetID.Int64}).
		QueryRowContext(ctx).
		Scan(&partitionID)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	return &storage.Record{
		Table:       ref.ReferencedTable(),
		ID:          targetID.Int64,
		PartitionID: partitionID.String,
	}, nil
}

// tableName returns the name registered in dlm_table for the id.
func (d *DBInfo) tableName(ctx context.Context, id int64) (string, error) {
	key := strconv.FormatInt(id, 10)
	if name, ok := d.tableNames.Get(key); ok {
		return name, nil
	}

	var name string
	err := d.stbl.
		Select("table_name").
		From(TableDirectoryTable).
		Where(sq.Eq{"dlm_table_id": id}).
		QueryRowContext(ctx).
		Scan(&name)
	if err != nil {
		return "", d.HandleSQLError(err)
	}

	d.tableNames.Set(key, name, 0)
	return name, nil
}

// RegisterTable returns the id of the table in dlm_table, adding the table if needed.
func RegisterTable(ctx context.Context, dbInfo *DBInfo, table string) (int64, error) {
	name, err := identifier(table)
	if err != nil {
		return 0, err
	}

	id, err := dbInfo.tableID(ctx, name)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return 0, err
	}

	_, err = dbInfo.stbl.
		Insert(TableDirectoryTable).
		Columns("table_name").
		Values(name).
		ExecContext(ctx)
	if err != nil {
		// a concurrent registration of the same table is fine
		if dberr := dbInfo.HandleSQLError(err); !errors.Is(dberr, storage.ErrCollision) {
			return 0, dberr
		}
	}

	return dbInfo.tableID(ctx, name)
}

func (d *DBInfo) tableID(ctx context.Context, name string) (int64, error) {
	var id int64
	err := d.stbl.
		Select("dlm_table_id").
		From(TableDirectoryTable).
		Where(sq.Eq{"table_name": name}).
		QueryRowContext(ctx).
		Scan(&id)
	if err != nil {
		return 0, d.HandleSQLError(err)
	}
	return id, nil
}

// EnablePartitioning registers the table and adds the partition column to it unless it has one.
func EnablePartitioning(ctx context.Context, dbInfo *DBInfo, table string, columnType string) (int64, error) {
	id, err := RegisterTable(ctx, dbInfo, table)
	if err != nil {
		return 0, err
	}

	name, _ := identifier(table)
	rows, err := dbInfo.stbl.
		Select(storage.PartitionColumn).
		From(name).
		Where("1 = 0").
		QueryContext(ctx)
	if err == nil {
		_ = rows.Close()
		return id, nil
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s NULL", name, storage.PartitionColumn, columnType)
	if _, err := dbInfo.db.ExecContext(ctx, stmt); err != nil {
		return 0, dbInfo.HandleSQLError(err)
	}

	// the catalog changed
	dbInfo.foreignKeys.Delete(foreignKeysCacheKey)
	return id, nil
}

// ForeignKeys returns the foreign keys of the database, cached for the configured time.
func (d *DBInfo) ForeignKeys(ctx context.Context) ([]ForeignKey, error) {
	if d.fkCacheTTL > 0 {
		if fks, ok := d.foreignKeys.Get(foreignKeysCacheKey); ok {
			return fks, nil
		}
	}

	fks, err := d.loadFKs(ctx, d.db)
	if err != nil {
		return nil, d.HandleSQLError(err)
	}

	if d.fkCacheTTL > 0 {
		d.foreignKeys.Set(foreignKeysCacheKey, fks, d.fkCacheTTL)
	}
	return fks, nil
}

// DryRun see [storage.IntegrityChecker].DryRun. For every declared foreign key it looks for an
// unpartitioned row outside of the partition that references a row inside of it, and for a row
// inside that references a row outside that is not partitioned. Id lists are bound in chunks of
// at most MaxParamsPerStatement values.
func DryRun(ctx context.Context, dbInfo *DBInfo, partition *storage.Partition) (storage.DryRunResult, error) {
	ctx, span := tracer.Start(ctx, "sqlcommon.DryRun", trace.WithAttributes(
		attribute.Int("records", len(partition.Records)),
	))
	defer span.End()

	if partition.IsEmpty() {
		return storage.DryRunResult{}, nil
	}

	fks, err := dbInfo.ForeignKeys(ctx)
	if err != nil {
		return storage.DryRunResult{}, err
	}

	byTable := partition.RecordsByTable()

	for _, fk := range fks {
		if ids, ok := byTable[fk.ReferencedTable]; ok {
			violated, err := dbInfo.referencedFromOutside(ctx, fk, ids, idSet(byTable[fk.ReferencingTable]))
			if err != nil {
				return storage.DryRunResult{}, err
			}
			if violated {
				return violation(fk), nil
			}
		}

		if ids, ok := byTable[fk.ReferencingTable]; ok {
			violated, err := dbInfo.referencesOutside(ctx, fk, ids, idSet(byTable[fk.ReferencedTable]))
			if err != nil {
				return storage.DryRunResult{}, err
			}
			if violated {
				return violation(fk), nil
			}
		}
	}

	return storage.DryRunResult{}, nil
}

func idSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// chunks splits ids into slices of at most the configured number of statement parameters.
func (d *DBInfo) chunks(ids []int64) func(func([]int64) bool) {
	return slices.Chunk(ids, d.maxParams)
}

// referencedFromOutside reports whether an unpartitioned row that is not part of the partition
// references one of referencedIDs.
func (d *DBInfo) referencedFromOutside(ctx context.Context, fk ForeignKey, referencedIDs []int64, inside map[int64]struct{}) (bool, error) {
	key := KeyColumn(fk.ReferencingTable)

	for chunk := range d.chunks(referencedIDs) {
		sb := d.stbl.
			Select(key).
			From(fk.ReferencingTable).
			Where(sq.Eq{fk.ReferencingColumn: chunk})
		if fk.ReferencingPartitionable {
			sb = sb.Where(sq.Eq{storage.PartitionColumn: nil})
		}

		found, err := d.anyOutside(ctx, sb, inside)
		if err != nil || found {
			return found, err
		}
	}
	return false, nil
}

// referencesOutside reports whether one of referencingIDs references a row that is neither part
// of the partition nor partitioned already.
func (d *DBInfo) referencesOutside(ctx context.Context, fk ForeignKey, referencingIDs []int64, inside map[int64]struct{}) (bool, error) {
	outside := make(map[int64]struct{})
	for chunk := range d.chunks(referencingIDs) {
		err := d.collectOutside(ctx, d.stbl.
			Select(fk.ReferencingColumn).
			Distinct().
			From(fk.ReferencingTable).
			Where(sq.Eq{KeyColumn(fk.ReferencingTable): chunk}).
			Where(sq.NotEq{fk.ReferencingColumn: nil}), inside, outside)
		if err != nil {
			return false, err
		}
	}

	if len(outside) == 0 {
		return false, nil
	}
	if !fk.ReferencedPartitionable {
		return true, nil
	}

	for chunk := range d.chunks(slices.Sorted(maps.Keys(outside))) {
		found, err := d.exists(ctx, d.stbl.
			Select("1").
			From(fk.ReferencedTable).
			Where(sq.Eq{KeyColumn(fk.ReferencedTable): chunk}).
			Where(sq.Eq{storage.PartitionColumn: nil}).
			Limit(1))
		if err != nil || found {
			return found, err
		}
	}
	return false, nil
}

// anyOutside reports whether the query yields an id that is not in inside.
func (d *DBInfo) anyOutside(ctx context.Context, sb sq.SelectBuilder, inside map[int64]struct{}) (bool, error) {
	rows, err := sb.QueryContext(ctx)
	if err != nil {
		return false, d.HandleSQLError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return false, d.HandleSQLError(err)
		}
		if _, ok := inside[id]; !ok {
			return true, nil
		}
	}
	if err := rows.Err(); err != nil {
		return false, d.HandleSQLError(err)
	}
	return false, nil
}

// collectOutside adds every id the query yields that is not in inside to outside.
func (d *DBInfo) collectOutside(ctx context.Context, sb sq.SelectBuilder, inside, outside map[int64]struct{}) error {
	rows, err := sb.QueryContext(ctx)
	if err != nil {
		return d.HandleSQLError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return d.HandleSQLError(err)
		}
		if _, ok := inside[id]; !ok {
			outside[id] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return d.HandleSQLError(err)
	}
	return nil
}

func (d *DBInfo) exists(ctx context.Context, sb sq.SelectBuilder) (bool, error) {
	var one int
	err := sb.QueryRowContext(ctx).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, d.HandleSQLError(err)
	}
	return true, nil
}

func violation(fk ForeignKey) storage.DryRunResult {
	return storage.DryRunResult{
		Violation: &refconfig.TableReferenceDescriptor{
			ReferencingTable:  strings.ToLower(fk.ReferencingTable),
			ReferencingColumn: strings.ToLower(fk.ReferencingColumn),
			ReferencedTable:   strings.ToLower(fk.ReferencedTable),
		},
	}
}

// WritePartition see [storage.PartitionWriter].WritePartition.
func WritePartition(
	ctx context.Context,
	dbInfo *DBInfo,
	partition *storage.Partition,
	now time.Time,
) (*storage.Partition, error) {
	config, err := refconfig.Marshal(partition.Config)
	if err != nil {
		return nil, err
	}

	byTable := make(map[string][]int64)
	for _, r := range partition.Records {
		name, err := identifier(r.Table)
		if err != nil {
			return nil, err
		}
		byTable[name] = append(byTable[name], r.ID)
	}

	txn, err := dbInfo.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	defer func() {
		_ = txn.Rollback()
	}()

	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()

	_, err = dbInfo.stbl.
		Insert(PartitionTable).
		Columns("dlm_partition_id", "config", "record_count", "created_at").
		Values(id, string(config), len(partition.Records), now.UnixMilli()).
		RunWith(txn).
		ExecContext(ctx)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	for table, ids := range byTable {
		for chunk := range dbInfo.chunks(ids) {
			res, err := dbInfo.stbl.
				Update(table).
				Set(storage.PartitionColumn, id).
				Where(sq.Eq{KeyColumn(table): chunk}).
				Where(sq.Eq{storage.PartitionColumn: nil}).
				RunWith(txn).
				ExecContext(ctx)
			if err != nil {
				return nil, dbInfo.HandleSQLError(err)
			}

			rowsAffected, err := res.RowsAffected()
			if err != nil {
				return nil, dbInfo.HandleSQLError(err)
			}
			if rowsAffected != int64(len(chunk)) {
				// someone else partitioned some of the rows since the closure was computed
				return nil, fmt.Errorf("%w: %d of %d rows of %s", storage.ErrRecordsAlreadyPartitioned, int64(len(chunk))-rowsAffected, len(chunk), table)
			}
		}
	}

	for records := range slices.Chunk(partition.Records, dbInfo.maxParams/partitionRecordParams) {
		insertRecords := dbInfo.stbl.
			Insert(PartitionRecordsTable).
			Columns("dlm_partition_id", "table_name", "record_id")
		for _, r := range records {
			insertRecords = insertRecords.Values(id, strings.ToLower(r.Table), r.ID)
		}
		if _, err := insertRecords.RunWith(txn).ExecContext(ctx); err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
	}

	if err := txn.Commit(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	stored := &storage.Partition{
		ID:        id,
		Config:    partition.Config,
		Records:   make([]*storage.Record, 0, len(partition.Records)),
		CreatedAt: time.UnixMilli(now.UnixMilli()).UTC(),
	}
	for _, r := range partition.Records {
		stored.Records = append(stored.Records, &storage.Record{Table: r.Table, ID: r.ID, PartitionID: id})
	}
	return stored, nil
}

// ReadPartition see [storage.PartitionReader].ReadPartition.
func ReadPartition(ctx context.Context, dbInfo *DBInfo, id string) (*storage.Partition, error) {
	var (
		config    string
		createdAt int64
	)
	err := dbInfo.stbl.
		Select("config", "created_at").
		From(PartitionTable).
		Where(sq.Eq{"dlm_partition_id": id}).
		QueryRowContext(ctx).
		Scan(&config, &createdAt)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	cfg, err := refconfig.Parse([]byte(config))
	if err != nil {
		return nil, fmt.Errorf("partition %s: %w", id, err)
	}

	rows, err := dbInfo.stbl.
		Select("table_name", "record_id").
		From(PartitionRecordsTable).
		Where(sq.Eq{"dlm_partition_id": id}).
		OrderBy("table_name", "record_id").
		QueryContext(ctx)
	if err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}
	defer rows.Close()

	partition := &storage.Partition{
		ID:        id,
		Config:    cfg,
		CreatedAt: time.UnixMilli(createdAt).UTC(),
	}
	for rows.Next() {
		record := &storage.Record{PartitionID: id}
		if err := rows.Scan(&record.Table, &record.ID); err != nil {
			return nil, dbInfo.HandleSQLError(err)
		}
		partition.Records = append(partition.Records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, dbInfo.HandleSQLError(err)
	}

	return partition, nil
}

// IsReady returns true if connection to datastore is successful AND
// (the datastore has the latest migration applied OR skipVersionCheck).
func IsReady(ctx context.Context, skipVersionCheck bool, db *sql.DB) (storage.ReadinessStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	// do ping first to ensure we have better error message
	// if error is due to connection issue.
	if pingErr := db.PingContext(ctx); pingErr != nil {
		return storage.ReadinessStatus{}, pingErr
	}

	if skipVersionCheck {
		return storage.ReadinessStatus{
			IsReady: true,
		}, nil
	}

	revision, err := goose.GetDBVersionContext(ctx, db)
	if err != nil {
		return storage.ReadinessStatus{}, err
	}

	if revision < build.MinimumSupportedDatastoreSchemaRevision {
		return storage.ReadinessStatus{
			Message: "datastore requires migrations: at revision '" +
				strconv.FormatInt(revision, 10) +
				"', but requires '" +
				strconv.FormatInt(build.MinimumSupportedDatastoreSchemaRevision, 10) +
				"'. Run '" + build.ProjectName + " migrate'.",
			IsReady: false,
		}, nil
	}
	return storage.ReadinessStatus{
		IsReady: true,
	}, nil
}
