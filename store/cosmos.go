package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/abhirockzz/langchaingo-trip-planner/plan"
)

// PartitionKeyPath is the partition key path the conversations container
// must be created with.
const PartitionKeyPath = "/userid"

// Cosmos stores each session as one item of an Azure Cosmos DB container.
type Cosmos struct {
	container    *azcosmos.ContainerClient
	partitionKey string
}

type cosmosDocument struct {
	ID        string                     `json:"id"`
	UserID    string                     `json:"userid"`
	UpdatedAt time.Time                  `json:"updatedAt"`
	Messages  []plan.ConversationMessage `json:"messages"`
}

// NewCosmos binds to an existing database and container. partitionKey is
// written to the userid field of every item.
func NewCosmos(client *azcosmos.Client, databaseName, containerName, partitionKey string) (*Cosmos, error) {
	database, err := client.NewDatabase(databaseName)
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}

	container, err := database.NewContainer(containerName)
	if err != nil {
		return nil, fmt.Errorf("failed to get container: %w", err)
	}

	return &Cosmos{container: container, partitionKey: partitionKey}, nil
}

func (c *Cosmos) pk() azcosmos.PartitionKey {
	return azcosmos.NewPartitionKeyString(c.partitionKey)
}

func (c *Cosmos) Load(ctx context.Context, sessionID string) ([]plan.ConversationMessage, error) {
	if err := checkSessionID(sessionID); err != nil {
		return nil, err
	}

	resp, err := c.container.ReadItem(ctx, c.pk(), sessionID, nil)
	if err != nil {
		if isNotFound(err) {
			return []plan.ConversationMessage{}, nil
		}
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}

	var doc cosmosDocument
	if err := json.Unmarshal(resp.Value, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	if doc.Messages == nil {
		doc.Messages = []plan.ConversationMessage{}
	}
	return doc.Messages, nil
}

func (c *Cosmos) Save(ctx context.Context, sessionID string, msgs []plan.ConversationMessage) error {
	if err := checkSessionID(sessionID); err != nil {
		return err
	}

	item, err := json.Marshal(cosmosDocument{
		ID:        sessionID,
		UserID:    c.partitionKey,
		UpdatedAt: time.Now().UTC(),
		Messages:  msgs,
	})
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}

	if _, err := c.container.UpsertItem(ctx, c.pk(), item, nil); err != nil {
		return fmt.Errorf("failed to save conversation: %w", err)
	}
	return nil
}

func (c *Cosmos) Delete(ctx context.Context, sessionID string) error {
	if err := checkSessionID(sessionID); err != nil {
		return err
	}

	if _, err := c.container.DeleteItem(ctx, c.pk(), sessionID, nil); err != nil && !isNotFound(err) {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var responseErr *azcore.ResponseError
	if errors.As(err, &responseErr) {
		return responseErr.StatusCode == http.StatusNotFound
	}
	return false
}
