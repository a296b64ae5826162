// Package migrations holds the sqlite schema migrations of the partition bookkeeping tables.
package migrations

import "github.com/zhangwei5095/metasfresh/pkg/storage/migrate"

var Migrations = migrate.NewRegistry("sqlite")
