//go:build integration

// Package cosmostest starts a Cosmos DB emulator for integration tests and
// prepares the conversation container in it.
package cosmostest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/abhirockzz/cosmosdb-go-sdk-helper/auth"
	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	emulatorImage = "mcr.microsoft.com/cosmosdb/linux/azure-cosmos-emulator:vnext-preview"
	emulatorPort  = "8081"

	Endpoint      = "http://localhost:8081"
	DatabaseName  = "plannerdb"
	ContainerName = "conversations"
)

// Emulator is a running emulator with a client connected to it.
type Emulator struct {
	Client    *azcosmos.Client
	container testcontainers.Container
}

// Start runs the emulator and creates DatabaseName and ContainerName in it,
// partitioned on partitionKeyPath.
func Start(ctx context.Context, partitionKeyPath string) (*Emulator, error) {
	req := testcontainers.ContainerRequest{
		Image:        emulatorImage,
		ExposedPorts: []string{emulatorPort + ":8081", "1234:1234"},
		WaitingFor:   wait.ForListeningPort(nat.Port(emulatorPort)),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}
	e := &Emulator{container: container}

	// the emulator accepts connections before it can serve requests
	time.Sleep(5 * time.Second)

	e.Client, err = auth.GetCosmosDBClient(Endpoint, true, nil)
	if err != nil {
		e.Terminate(ctx)
		return nil, fmt.Errorf("failed to create cosmos client: %w", err)
	}

	if err := setupDatabaseAndContainer(ctx, e.Client, partitionKeyPath); err != nil {
		e.Terminate(ctx)
		return nil, err
	}
	return e, nil
}

func (e *Emulator) Terminate(ctx context.Context) {
	if e != nil && e.container != nil {
		_ = e.container.Terminate(ctx)
	}
}

func setupDatabaseAndContainer(ctx context.Context, client *azcosmos.Client, partitionKeyPath string) error {
	_, err := client.CreateDatabase(ctx, azcosmos.DatabaseProperties{ID: DatabaseName}, nil)
	if err != nil && !isResourceExistsError(err) {
		return fmt.Errorf("failed to create test database: %w", err)
	}

	database, err := client.NewDatabase(DatabaseName)
	if err != nil {
		return fmt.Errorf("failed to get database: %w", err)
	}

	containerProps := azcosmos.ContainerProperties{
		ID: ContainerName,
		PartitionKeyDefinition: azcosmos.PartitionKeyDefinition{
			Paths: []string{partitionKeyPath},
		},
		DefaultTimeToLive: to.Ptr[int32](60),
	}

	_, err = database.CreateContainer(ctx, containerProps, nil)
	if err != nil && !isResourceExistsError(err) {
		return fmt.Errorf("failed to create test container: %w", err)
	}
	return nil
}

func isResourceExistsError(err error) bool {
	var responseErr *azcore.ResponseError
	if errors.As(err, &responseErr) {
		return responseErr.StatusCode == http.StatusConflict
	}
	return false
}
