package storage

import (
	"context"
	"errors"
	"time"

	"github.com/johnwmail/pastelite/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements PasteStore using MongoDB
type MongoStore struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoStore creates a new MongoDB storage backend
func NewMongoStore(ctx context.Context, url, dbName, collectionName string) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(url).
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, err
	}

	// Test the connection
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	store := newMongoStoreFromCollection(client.Database(dbName).Collection(collectionName))

	// Create TTL index for auto-expiration
	if err := store.createIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}

	return store, nil
}

func newMongoStoreFromCollection(collection *mongo.Collection) *MongoStore {
	return &MongoStore{
		client:     collection.Database().Client(),
		collection: collection,
	}
}

// createIndexes creates necessary indexes for the collection
func (m *MongoStore) createIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Documents without expires_at are never reaped by the TTL monitor
	ttlIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	}

	// Index on created_at for queries
	createdAtIndex := mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		ttlIndex,
		createdAtIndex,
	})

	return err
}

// Store saves a paste to MongoDB
func (m *MongoStore) Store(ctx context.Context, paste *models.Paste) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := m.collection.InsertOne(ctx, paste)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateID
	}
	return err
}

// Get retrieves a paste by its ID
func (m *MongoStore) Get(ctx context.Context, id string) (*models.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var paste models.Paste
	err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&paste)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil // Not found
		}
		return nil, err
	}
	return &paste, nil
}

// IncrementViewAndFetch bumps view_count with $inc and returns the updated document
func (m *MongoStore) IncrementViewAndFetch(ctx context.Context, id string) (*models.Paste, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var paste models.Paste
	err := m.collection.FindOneAndUpdate(
		ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"view_count": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&paste)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, err
	}
	return &paste, nil
}

// Delete removes a paste from MongoDB
func (m *MongoStore) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := m.collection.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// Ping checks the MongoDB connection
func (m *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return m.client.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (m *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return m.client.Disconnect(ctx)
}
