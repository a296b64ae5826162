package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/require"

	"github.com/zhangwei5095/metasfresh/pkg/storage/mysql/migrations"
)

const (
	mySQLImage = "mysql:8"
)

type mySQLTestContainer struct {
	addr     string
	version  int64
	username string
	password string
}

// NewMySQLTestContainer returns an implementation of the DatastoreTestContainer interface
// for MySQL.
func NewMySQLTestContainer() *mySQLTestContainer {
	return &mySQLTestContainer{}
}

func (m *mySQLTestContainer) GetDatabaseSchemaVersion() int64 {
	return m.version
}

// RunMySQLTestContainer runs a MySQL container, connects to it, and returns a
// bootstrapped implementation of the DatastoreTestContainer interface wired up for the
// MySQL datastore engine.
func (m *mySQLTestContainer) RunMySQLTestContainer(t testing.TB) DatastoreTestContainer {
	dockerClient := newDockerClient(t)

	addr := runContainer(t, dockerClient, containerSpec{
		name:  "mysql",
		image: mySQLImage,
		env: []string{
			"MYSQL_DATABASE=defaultdb",
			"MYSQL_ROOT_PASSWORD=secret",
		},
		port: nat.Port("3306/tcp"),
	})

	mySQLTestContainer := &mySQLTestContainer{
		addr:     addr,
		username: "root",
		password: "secret",
	}

	// the driver logs the refused connections while the server starts up
	err := mysql.SetLogger(log.New(io.Discard, "", 0))
	require.NoError(t, err)

	mySQLTestContainer.version = migrateDatabase(t, "mysql", mySQLTestContainer.GetConnectionURI(true), migrations.Migrations)

	return mySQLTestContainer
}

// GetConnectionURI returns the mysql connection uri for the running mysql test container.
func (m *mySQLTestContainer) GetConnectionURI(includeCredentials bool) string {
	return m.uri("defaultdb", includeCredentials)
}

// CreateDatabase see [DatastoreTestContainer].CreateDatabase.
func (m *mySQLTestContainer) CreateDatabase(t testing.TB) string {
	db, err := waitForDatabase("mysql", m.GetConnectionURI(true))
	require.NoError(t, err)
	defer db.Close()

	name := databaseName()
	_, err = db.ExecContext(context.Background(), "CREATE DATABASE "+name)
	require.NoError(t, err)

	uri := m.uri(name, true)
	migrateDatabase(t, "mysql", uri, migrations.Migrations)
	return uri
}

func (m *mySQLTestContainer) uri(database string, includeCredentials bool) string {
	creds := ""
	if includeCredentials {
		creds = fmt.Sprintf("%s:%s@", m.username, m.password)
	}

	return fmt.Sprintf(
		"%stcp(%s)/%s?parseTime=true",
		creds,
		m.addr,
		database,
	)
}

func (m *mySQLTestContainer) GetUsername() string {
	return m.username
}

func (m *mySQLTestContainer) GetPassword() string {
	return m.password
}
