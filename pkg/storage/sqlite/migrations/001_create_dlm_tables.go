package migrations

import (
	"context"
	"database/sql"

	"github.com/zhangwei5095/metasfresh/pkg/storage/migrate"
)

func up001(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE dlm_table (
	dlm_table_id INTEGER PRIMARY KEY AUTOINCREMENT,
	table_name TEXT NOT NULL UNIQUE
);`,
		`CREATE TABLE dlm_partition (
	dlm_partition_id TEXT PRIMARY KEY,
	config TEXT NOT NULL,
	record_count INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);`,
		`CREATE TABLE dlm_partition_record (
	dlm_partition_id TEXT NOT NULL REFERENCES dlm_partition (dlm_partition_id),
	table_name TEXT NOT NULL,
	record_id INTEGER NOT NULL,
	PRIMARY KEY (table_name, record_id)
);`,
		`CREATE INDEX idx_dlm_partition_record_partition ON dlm_partition_record (dlm_partition_id);`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func down001(ctx context.Context, tx *sql.Tx) error {
	for _, table := range []string{"dlm_partition_record", "dlm_partition", "dlm_table"} {
		if _, err := tx.ExecContext(ctx, "DROP TABLE "+table+";"); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Version:  1,
			Forward:  up001,
			Backward: down001,
		},
	)
}
