// Package natskv stores persistence blobs in a NATS JetStream key/value bucket.
package natskv

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/chatdesk/internal/persist"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Store is a persist.BlobStore backed by a JetStream bucket. Keys are
// namespaced by profile so several profiles can share one bucket.
type Store struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	prefix string
}

// Open connects to url and binds to bucket, creating it if needed.
func Open(ctx context.Context, url, bucket, profile string) (*Store, error) {
	nc, err := nats.Connect(url, nats.Name("chatdesk-"+profile))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "chatdesk state",
		History:     1,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bind bucket %q: %w", bucket, err)
	}
	return &Store{nc: nc, kv: kv, prefix: profile + "."}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	entry, err := s.kv.Get(ctx, s.prefix+key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, persist.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return entry.Value(), nil
}

func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	if _, err := s.kv.Put(ctx, s.prefix+key, value); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// Close drains the connection.
func (s *Store) Close() error {
	return s.nc.Drain()
}
