// Package storage runs the SQL engines in docker containers for the datastore tests.
package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"
)

// DatastoreTestContainer represents a runnable container for testing specific datastore engines.
type DatastoreTestContainer interface {

	// GetConnectionURI returns a connection string to the default database of the datastore
	// instance running inside the container.
	GetConnectionURI(includeCredentials bool) string

	// CreateDatabase creates an empty database, runs the migrations against it and returns a
	// connection string with credentials to it.
	CreateDatabase(t testing.TB) string

	// GetDatabaseSchemaVersion returns the last migration applied when the container was created.
	GetDatabaseSchemaVersion() int64

	GetUsername() string
	GetPassword() string
}

type memoryTestContainer struct{}

func (m memoryTestContainer) GetConnectionURI(includeCredentials bool) string {
	return ""
}

func (m memoryTestContainer) CreateDatabase(testing.TB) string {
	return ""
}

func (m memoryTestContainer) GetUsername() string {
	return ""
}

func (m memoryTestContainer) GetPassword() string {
	return ""
}

func (m memoryTestContainer) GetDatabaseSchemaVersion() int64 {
	return 1
}

// RunDatastoreTestContainer constructs and runs a specific DatastoreTestContainer for the provided
// datastore engine and runs the migrations of the engine against its default database.
// The test is skipped if no docker daemon is reachable. The container is removed after the test
// has finished.
func RunDatastoreTestContainer(t testing.TB, engine string) DatastoreTestContainer {
	switch engine {
	case "mysql":
		return NewMySQLTestContainer().RunMySQLTestContainer(t)
	case "postgres":
		return NewPostgresTestContainer().RunPostgresTestContainer(t)
	case "memory":
		return memoryTestContainer{}
	default:
		t.Fatalf("'%s' engine is not supported by RunDatastoreTestContainer", engine)
		return nil
	}
}

// containerSpec is what differs between the engine containers.
type containerSpec struct {
	name  string
	image string
	env   []string
	port  nat.Port
}

// newDockerClient connects to the docker daemon from the environment and skips the test if
// there is none.
func newDockerClient(t testing.TB) *client.Client {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	dockerClient, err := client.NewClientWithOpts(
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		dockerClient.Close()
	})

	if _, err := dockerClient.Ping(context.Background()); err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	return dockerClient
}

// runContainer pulls the image if needed, starts the container and returns the host address its
// port is published on. The container is stopped, and thereby removed, by the test's cleanup.
func runContainer(t testing.TB, dockerClient *client.Client, spec containerSpec) string {
	ctx := context.Background()

	allImages, err := dockerClient.ImageList(ctx, image.ListOptions{
		All: true,
	})
	require.NoError(t, err)

	found := false

AllImages:
	for _, img := range allImages {
		for _, tag := range img.RepoTags {
			if strings.Contains(tag, spec.image) {
				found = true
				break AllImages
			}
		}
	}

	if !found {
		t.Logf("Pulling image %s", spec.image)
		reader, err := dockerClient.ImagePull(ctx, spec.image, image.PullOptions{})
		require.NoError(t, err)

		_, err = io.Copy(io.Discard, reader) // consume the image pull output to make sure it's done
		require.NoError(t, err)
		require.NoError(t, reader.Close())
	}

	containerCfg := container.Config{
		Env: spec.env,
		ExposedPorts: nat.PortSet{
			spec.port: {},
		},
		Image: spec.image,
	}

	hostCfg := container.HostConfig{
		AutoRemove:      true,
		PublishAllPorts: true,
	}

	name := spec.name + "-" + ulid.Make().String()

	cont, err := dockerClient.ContainerCreate(ctx, &containerCfg, &hostCfg, nil, nil, name)
	require.NoError(t, err, "failed to create %s docker container", spec.name)

	t.Cleanup(func() {
		t.Logf("stopping container %s", name)
		timeoutSec := 5

		err := dockerClient.ContainerStop(context.Background(), cont.ID, container.StopOptions{Timeout: &timeoutSec})
		if err != nil && !errdefs.IsNotFound(err) {
			t.Logf("failed to stop %s container: %v", spec.name, err)
		}

		t.Logf("stopped container %s", name)
	})

	err = dockerClient.ContainerStart(ctx, cont.ID, container.StartOptions{})
	require.NoError(t, err, "failed to start %s container", spec.name)

	containerJSON, err := dockerClient.ContainerInspect(ctx, cont.ID)
	require.NoError(t, err)

	m, ok := containerJSON.NetworkSettings.Ports[spec.port]
	if !ok || len(m) == 0 {
		require.Fail(t, "failed to get host port mapping from "+spec.name+" container")
	}

	return "localhost:" + m[0].HostPort
}

// databaseName returns a fresh name for a test database.
func databaseName() string {
	return "dlm_" + strings.ToLower(ulid.Make().String())
}
