// Package objectstore provides a NATS JetStream implementation of the
// ObjectStore interface, used for the script, asset, and render buckets.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/nats-io/nats.go"
)

// Bucket wraps one NATS object-store bucket behind core.ObjectStore.
type Bucket struct {
	name  string
	store nats.ObjectStore
}

// New binds to the named bucket, creating it when it does not exist yet.
func New(jetstreamContext nats.JetStreamContext, bucketName string) (*Bucket, error) {
	store, bindErr := jetstreamContext.ObjectStore(bucketName)
	if bindErr != nil {
		if !errors.Is(bindErr, nats.ErrStreamNotFound) && !errors.Is(bindErr, nats.ErrBucketNotFound) {
			return nil, fmt.Errorf("failed to bind to object store bucket '%s': %w", bucketName, bindErr)
		}

		var createErr error

		store, createErr = jetstreamContext.CreateObjectStore(&nats.ObjectStoreConfig{
			Bucket:      bucketName,
			Description: fmt.Sprintf("Storage for the %s bucket.", bucketName),
			TTL:         0,
			MaxBytes:    0,
			Storage:     nats.FileStorage,
			Replicas:    1,
			Placement:   nil,
			Metadata:    nil,
			Compression: false,
		})
		if createErr != nil {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucketName, createErr)
		}
	}

	return &Bucket{
		name:  bucketName,
		store: store,
	}, nil
}

// Download retrieves an object by key.
func (b *Bucket) Download(_ context.Context, key string) ([]byte, error) {
	object, getErr := b.store.Get(key)
	if getErr != nil {
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", key, b.name, getErr)
	}

	data, readErr := io.ReadAll(object)
	closeErr := object.Close()

	if readErr != nil {
		return nil, fmt.Errorf("failed to read object '%s': %w", key, readErr)
	}

	if closeErr != nil {
		return data, fmt.Errorf("failed to close object '%s': %w", key, closeErr)
	}

	return data, nil
}

// Upload stores an object under the given key.
func (b *Bucket) Upload(_ context.Context, key string, data []byte) error {
	_, putErr := b.store.Put(&nats.ObjectMeta{
		Name:        key,
		Description: "",
		Headers:     nil,
		Metadata:    nil,
		Opts:        nil,
	}, bytes.NewReader(data))
	if putErr != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", key, b.name, putErr)
	}

	return nil
}
