package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/minigrant/client"
)

// ClientRepositoryMongo implements client.ClientStore.
type ClientRepositoryMongo struct {
	collection *mongo.Collection
}

// NewClientRepositoryMongo creates the repository and ensures its indexes.
func NewClientRepositoryMongo(ctx context.Context, db *mongo.Database) (*ClientRepositoryMongo, error) {
	repo := &ClientRepositoryMongo{
		collection: db.Collection(ClientsCollection),
	}
	_, err := repo.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "client_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s indexes: %w", ClientsCollection, err)
	}
	return repo, nil
}

// CreateClient implements client.ClientStore.
func (r *ClientRepositoryMongo) CreateClient(ctx context.Context, c *client.Client) error {
	_, err := r.collection.InsertOne(ctx, c)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("client %s already exists", c.ID)
		}
		return err
	}
	return nil
}

// GetClient implements client.ClientStore.
func (r *ClientRepositoryMongo) GetClient(ctx context.Context, clientID string) (*client.Client, error) {
	var c client.Client
	err := r.collection.FindOne(ctx, bson.M{"client_id": clientID}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, client.ErrClientNotFound
		}
		return nil, err
	}
	return &c, nil
}

// UpdateClient implements client.ClientStore.
func (r *ClientRepositoryMongo) UpdateClient(ctx context.Context, c *client.Client) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"client_id": c.ID}, c)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return client.ErrClientNotFound
	}
	return nil
}

// DeleteClient implements client.ClientStore.
func (r *ClientRepositoryMongo) DeleteClient(ctx context.Context, clientID string) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"client_id": clientID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return client.ErrClientNotFound
	}
	return nil
}

var _ client.ClientStore = (*ClientRepositoryMongo)(nil)
