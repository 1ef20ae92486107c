// Package mongokv stores persistence blobs in a MongoDB collection.
package mongokv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/chatdesk/internal/persist"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

const collection = "blobs"

type blobDoc struct {
	ID        string `bson:"_id"`
	Value     []byte `bson:"value"`
	UpdatedAt int64  `bson:"updated_at"`
}

// Store is a persist.BlobStore backed by one document per key. Document ids
// are "<profile>/<key>".
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	prefix string
}

// Open connects to uri and verifies the connection.
func Open(ctx context.Context, uri, database, profile string) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Store{
		client: client,
		coll:   client.Database(database).Collection(collection),
		prefix: profile + "/",
	}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var doc blobDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": s.prefix + key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, persist.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return doc.Value, nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	update := bson.M{"$set": bson.M{
		"value":      value,
		"updated_at": time.Now().UnixMilli(),
	}}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": s.prefix + key}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
