// Package assetstore resolves sound-effect and background-track ids against a
// NATS object-store bucket. Each registered asset occupies two objects: the
// decoded audio under "<id>.wav" and its descriptor sidecar under "<id>.toml"
// holding the per-asset defaults the resolver merges.
package assetstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/pelletier/go-toml/v2"

	"github.com/FatStinkyPanda/talk2me-render/internal/core"
	"github.com/FatStinkyPanda/talk2me-render/internal/wavio"
)

// Object-name suffixes within the asset bucket.
const (
	audioSuffix      = ".wav"
	descriptorSuffix = ".toml"
)

// Store implements core.AssetStore over a shared ObjectStore bucket. Reads are
// safe to share across concurrent renders.
type Store struct {
	bucket core.ObjectStore
}

// New creates an asset store over the given bucket.
func New(bucket core.ObjectStore) *Store {
	return &Store{bucket: bucket}
}

// Lookup fetches an asset's descriptor and decoded audio. A missing object —
// either half of the pair — reports core.ErrAssetNotFound: an asset without
// its sidecar is not registered, and guessing defaults for it would mix audio
// the author never configured.
func (s *Store) Lookup(ctx context.Context, assetID string) (core.AssetDescriptor, core.Clip, error) {
	descriptorData, descriptorErr := s.bucket.Download(ctx, assetID+descriptorSuffix)
	if descriptorErr != nil {
		return core.AssetDescriptor{}, core.Clip{}, wrapLookupError(assetID, descriptorErr)
	}

	var descriptor core.AssetDescriptor

	unmarshalErr := toml.Unmarshal(descriptorData, &descriptor)
	if unmarshalErr != nil {
		return core.AssetDescriptor{}, core.Clip{}, fmt.Errorf(
			"failed to parse descriptor for asset '%s': %w", assetID, unmarshalErr,
		)
	}

	if descriptor.ID == "" {
		descriptor.ID = assetID
	}

	audioData, audioErr := s.bucket.Download(ctx, assetID+audioSuffix)
	if audioErr != nil {
		return core.AssetDescriptor{}, core.Clip{}, wrapLookupError(assetID, audioErr)
	}

	clip, decodeErr := wavio.Decode(audioData)
	if decodeErr != nil {
		return core.AssetDescriptor{}, core.Clip{}, fmt.Errorf(
			"failed to decode audio for asset '%s': %w", assetID, decodeErr,
		)
	}

	return descriptor, clip, nil
}

// wrapLookupError maps a missing object onto core.ErrAssetNotFound and keeps
// transport failures distinguishable from registration gaps.
func wrapLookupError(assetID string, err error) error {
	if errors.Is(err, nats.ErrObjectNotFound) {
		return fmt.Errorf("%w: '%s'", core.ErrAssetNotFound, assetID)
	}

	return fmt.Errorf("failed to look up asset '%s': %w", assetID, err)
}
