package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/docker/go-connections/nat"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver.
	"github.com/stretchr/testify/require"

	"github.com/zhangwei5095/metasfresh/pkg/storage/postgres/migrations"
)

const (
	postgresImage = "postgres:17"
)

type postgresTestContainer struct {
	addr     string
	version  int64
	username string
	password string
}

// NewPostgresTestContainer returns an implementation of the DatastoreTestContainer interface
// for Postgres.
func NewPostgresTestContainer() *postgresTestContainer {
	return &postgresTestContainer{}
}

func (p *postgresTestContainer) GetDatabaseSchemaVersion() int64 {
	return p.version
}

// RunPostgresTestContainer runs a Postgres container, connects to it, and returns a
// bootstrapped implementation of the DatastoreTestContainer interface wired up for the
// Postgres datastore engine.
func (p *postgresTestContainer) RunPostgresTestContainer(t testing.TB) DatastoreTestContainer {
	dockerClient := newDockerClient(t)

	addr := runContainer(t, dockerClient, containerSpec{
		name:  "postgres",
		image: postgresImage,
		env: []string{
			"POSTGRES_DB=defaultdb",
			"POSTGRES_PASSWORD=secret",
		},
		port: nat.Port("5432/tcp"),
	})

	pgTestContainer := &postgresTestContainer{
		addr:     addr,
		username: "postgres",
		password: "secret",
	}
	pgTestContainer.version = migrateDatabase(t, "pgx", pgTestContainer.GetConnectionURI(true), migrations.Migrations)

	return pgTestContainer
}

// GetConnectionURI returns the postgres connection uri for the running postgres test container.
func (p *postgresTestContainer) GetConnectionURI(includeCredentials bool) string {
	return p.uri("defaultdb", includeCredentials)
}

// CreateDatabase see [DatastoreTestContainer].CreateDatabase.
func (p *postgresTestContainer) CreateDatabase(t testing.TB) string {
	db, err := waitForDatabase("pgx", p.GetConnectionURI(true))
	require.NoError(t, err)
	defer db.Close()

	name := databaseName()
	_, err = db.ExecContext(context.Background(), "CREATE DATABASE "+name)
	require.NoError(t, err)

	uri := p.uri(name, true)
	migrateDatabase(t, "pgx", uri, migrations.Migrations)
	return uri
}

func (p *postgresTestContainer) uri(database string, includeCredentials bool) string {
	creds := ""
	if includeCredentials {
		creds = fmt.Sprintf("%s:%s@", p.username, p.password)
	}

	return fmt.Sprintf(
		"postgres://%s%s/%s?sslmode=disable",
		creds,
		p.addr,
		database,
	)
}

func (p *postgresTestContainer) GetUsername() string {
	return p.username
}

func (p *postgresTestContainer) GetPassword() string {
	return p.password
}
