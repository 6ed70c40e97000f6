package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"go.pilab.hu/minigrant/domain"
)

// IdentityRepositoryMongo implements domain.IdentityRepository.
type IdentityRepositoryMongo struct {
	collection *mongo.Collection
}

// NewIdentityRepositoryMongo creates the repository and ensures its
// indexes. The unique (provider, open_id) index is what makes concurrent
// first logins collapse onto a single document, so index creation failure
// is fatal here.
func NewIdentityRepositoryMongo(ctx context.Context, db *mongo.Database) (*IdentityRepositoryMongo, error) {
	repo := &IdentityRepositoryMongo{
		collection: db.Collection(MiniProgramIdentitiesCollection),
	}
	if err := repo.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create %s indexes: %w", MiniProgramIdentitiesCollection, err)
	}
	return repo, nil
}

func (r *IdentityRepositoryMongo) createIndexes(ctx context.Context) error {
	indexModels := []mongo.IndexModel{
		{
			// At most one identity document per external identity.
			Keys:    bson.D{{Key: "provider", Value: 1}, {Key: "open_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Union-based auto-link lookups.
			Keys: bson.D{{Key: "provider", Value: 1}, {Key: "union_id", Value: 1}},
		},
		{
			// Cascade deletes and "identities of user" listings.
			Keys: bson.D{{Key: "user_id", Value: 1}},
		},
	}

	_, err := r.collection.Indexes().CreateMany(ctx, indexModels)
	if err != nil {
		return err
	}
	log.Info().Msgf("Indexes for %s collection ensured", MiniProgramIdentitiesCollection)
	return nil
}

// FindByOpenID implements domain.IdentityRepository.
func (r *IdentityRepositoryMongo) FindByOpenID(ctx context.Context, provider domain.Provider, openID string) (*domain.MiniProgramIdentity, error) {
	return r.findOne(ctx, bson.M{"provider": provider, "open_id": openID})
}

// FindByUnionID implements domain.IdentityRepository. The oldest matching
// document wins; (provider, open_id) uniqueness already collapses
// duplicates within a provider, so no further tie-break is needed.
func (r *IdentityRepositoryMongo) FindByUnionID(ctx context.Context, provider domain.Provider, unionID string) (*domain.MiniProgramIdentity, error) {
	if unionID == "" {
		return nil, domain.ErrIdentityNotFound
	}
	return r.findOne(ctx, bson.M{"provider": provider, "union_id": unionID},
		options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (r *IdentityRepositoryMongo) findOne(ctx context.Context, filter bson.M, opts ...options.Lister[options.FindOneOptions]) (*domain.MiniProgramIdentity, error) {
	var identity domain.MiniProgramIdentity
	err := r.collection.FindOne(ctx, filter, opts...).Decode(&identity)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, err
	}
	return &identity, nil
}

// Upsert implements domain.IdentityRepository. The write is one atomic
// FindOneAndUpdate keyed by the unique (provider, open_id) index. A loser
// of a concurrent first-login race gets a duplicate-key error from the
// upsert insert path and reruns the same statement, which then matches the
// winner's document and updates it.
func (r *IdentityRepositoryMongo) Upsert(ctx context.Context, attrs domain.IdentityUpsert) (*domain.MiniProgramIdentity, error) {
	identity, err := r.upsertOnce(ctx, attrs)
	if err != nil && mongo.IsDuplicateKeyError(err) {
		identity, err = r.upsertOnce(ctx, attrs)
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrDuplicateIdentity
		}
		return nil, err
	}
	return identity, nil
}

func (r *IdentityRepositoryMongo) upsertOnce(ctx context.Context, attrs domain.IdentityUpsert) (*domain.MiniProgramIdentity, error) {
	now := time.Now().UTC()

	set := bson.M{
		"union_id":   attrs.UnionID,
		"name":       attrs.Name,
		"nickname":   attrs.Nickname,
		"email":      attrs.Email,
		"mobile":     attrs.Mobile,
		"avatar":     attrs.Avatar,
		"raw_data":   attrs.RawData,
		"updated_at": now,
	}
	// user_id is only ever written when the resolution carries one;
	// clearing a link is Disconnect's job alone.
	if attrs.UserID != "" {
		set["user_id"] = attrs.UserID
	}

	update := bson.M{
		"$set": set,
		"$setOnInsert": bson.M{
			"_id":        bson.NewObjectID().Hex(),
			"provider":   attrs.Provider,
			"open_id":    attrs.OpenID,
			"created_at": now,
		},
	}

	var identity domain.MiniProgramIdentity
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"provider": attrs.Provider, "open_id": attrs.OpenID},
		update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&identity)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// Connect implements domain.IdentityRepository. Connecting is idempotent
// for the same user but refuses to steal an identity already linked to a
// different one.
func (r *IdentityRepositoryMongo) Connect(ctx context.Context, identityID, userID string) error {
	filter := bson.M{
		"_id": identityID,
		"$or": []bson.M{
			{"user_id": bson.M{"$exists": false}},
			{"user_id": ""},
			{"user_id": userID},
		},
	}
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"user_id": userID, "updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Either the identity is missing or it belongs to someone else.
		if _, findErr := r.findOne(ctx, bson.M{"_id": identityID}); findErr != nil {
			return findErr
		}
		return domain.ErrIdentityLinked
	}
	return nil
}

// Disconnect implements domain.IdentityRepository. This is the only code
// path that unsets user_id.
func (r *IdentityRepositoryMongo) Disconnect(ctx context.Context, identityID string) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": identityID}, bson.M{
		"$unset": bson.M{"user_id": ""},
		"$set":   bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrIdentityNotFound
	}
	return nil
}

// DeleteByUserID implements domain.IdentityRepository.
func (r *IdentityRepositoryMongo) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, nil
	}
	res, err := r.collection.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

var _ domain.IdentityRepository = (*IdentityRepositoryMongo)(nil)
