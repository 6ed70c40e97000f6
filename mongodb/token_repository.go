package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/minigrant/domain"
)

// TokenRepositoryMongo implements domain.TokenRepository.
type TokenRepositoryMongo struct {
	collection *mongo.Collection
}

// NewTokenRepositoryMongo creates the repository and ensures its indexes.
func NewTokenRepositoryMongo(ctx context.Context, db *mongo.Database) (*TokenRepositoryMongo, error) {
	repo := &TokenRepositoryMongo{
		collection: db.Collection(TokensCollection),
	}
	indexModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "token_value", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Mongo reaps expired tokens itself.
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
	if _, err := repo.collection.Indexes().CreateMany(ctx, indexModels); err != nil {
		return nil, fmt.Errorf("failed to create %s indexes: %w", TokensCollection, err)
	}
	return repo, nil
}

// StoreToken implements domain.TokenRepository. A duplicate token value is
// reported as domain.ErrDuplicateToken rather than swallowed.
func (r *TokenRepositoryMongo) StoreToken(ctx context.Context, token *domain.Token) error {
	_, err := r.collection.InsertOne(ctx, token)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateToken
		}
		return err
	}
	return nil
}

// GetTokenByValue implements domain.TokenRepository.
func (r *TokenRepositoryMongo) GetTokenByValue(ctx context.Context, value string) (*domain.Token, error) {
	var token domain.Token
	err := r.collection.FindOne(ctx, bson.M{"token_value": value}).Decode(&token)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("token not found")
		}
		return nil, err
	}
	return &token, nil
}

// RevokeToken implements domain.TokenRepository.
func (r *TokenRepositoryMongo) RevokeToken(ctx context.Context, value string) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"token_value": value}, bson.M{
		"$set": bson.M{"is_revoked": true, "last_used_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("token not found")
	}
	return nil
}

var _ domain.TokenRepository = (*TokenRepositoryMongo)(nil)
