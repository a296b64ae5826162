// Package build provides the build information injected at link time.
package build

// Values are overwritten with -ldflags "-X github.com/zhangwei5095/metasfresh/internal/build.Version=...".
var (
	// ProjectName is used as the namespace of exported metrics.
	ProjectName = "dlm"
	Version     = "dev"
	Commit      = "none"
	Date        = "unknown"
)

// MinimumSupportedDatastoreSchemaRevision is the schema revision the SQL datastores need to be at.
const MinimumSupportedDatastoreSchemaRevision int64 = 1
