package mongodb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/v2/mongo/otelmongo"
)

// Collection names used by this package.
const (
	MiniProgramIdentitiesCollection = "mini_program_identities"
	ClientsCollection               = "oauth_clients"
	TokensCollection                = "oauth_tokens"
)

var (
	clientInstance *mongo.Client
	clientOnce     sync.Once
	dbInstance     *mongo.Database
	dbOnce         sync.Once
)

// InitMongoDB initializes the MongoDB client and database instances. It
// should be called once at application startup.
func InitMongoDB(ctx context.Context, uri, dbName string) error {
	var err error
	clientOnce.Do(func() {
		log.Info().Msgf("Initializing MongoDB client with URI: %s", uri)
		clientOptions := options.Client().
			ApplyURI(uri).
			SetConnectTimeout(10 * time.Second).
			SetMonitor(otelmongo.NewMonitor())

		c, connErr := mongo.Connect(clientOptions)
		if connErr != nil {
			err = connErr
			return
		}
		if pingErr := c.Ping(ctx, readpref.Primary()); pingErr != nil {
			err = pingErr
			return
		}
		clientInstance = c
		log.Info().Msg("MongoDB client initialized successfully")
	})
	if err != nil {
		return err
	}
	if clientInstance == nil {
		return errors.New("mongodb client not initialized")
	}

	dbOnce.Do(func() {
		log.Info().Msgf("Using MongoDB database: %s", dbName)
		dbInstance = clientInstance.Database(dbName)
	})
	if dbInstance == nil {
		return errors.New("mongodb database not initialized")
	}
	return nil
}

// GetDB returns the MongoDB database instance. InitMongoDB must have been
// called successfully first.
func GetDB() *mongo.Database {
	if dbInstance == nil {
		log.Fatal().Msg("MongoDB database instance is not initialized. Call InitMongoDB first.")
	}
	return dbInstance
}

// Ping verifies the connection, useful for health checks.
func Ping(ctx context.Context) error {
	if clientInstance == nil {
		return errors.New("mongodb client is not initialized")
	}
	return clientInstance.Ping(ctx, readpref.Primary())
}

// Disconnect closes the MongoDB connection on shutdown.
func Disconnect(ctx context.Context) error {
	if clientInstance == nil {
		return nil
	}
	return clientInstance.Disconnect(ctx)
}
