package deploy

import (
	"context"

	"github.com/3leaps/appdeploy/pkg/provider"
)

// Store is the storage collaborator for one configuration bucket.
//
// Every call blocks until the backend responds; callers issue them strictly
// in sequence.
type Store interface {
	// BucketExists reports whether the bucket exists.
	BucketExists(ctx context.Context) (bool, error)

	// ListAll returns every object key in the bucket.
	ListAll(ctx context.Context) ([]string, error)

	// ObjectExists reports whether key exists.
	ObjectExists(ctx context.Context, key string) (bool, error)

	// CreateFolder writes a private zero-byte marker at key.
	CreateFolder(ctx context.Context, key string) error
}

// BucketProvider is a provider with the capabilities reconciliation needs.
type BucketProvider interface {
	provider.Provider
	provider.BucketChecker
	provider.FolderMarkerPutter
}

// ProviderStore adapts a BucketProvider to Store.
type ProviderStore struct {
	prov BucketProvider
}

var _ Store = (*ProviderStore)(nil)

// NewProviderStore wraps prov.
func NewProviderStore(prov BucketProvider) *ProviderStore {
	return &ProviderStore{prov: prov}
}

// Provider returns the wrapped provider.
func (s *ProviderStore) Provider() BucketProvider {
	return s.prov
}

// BucketExists reports whether the bucket exists.
func (s *ProviderStore) BucketExists(ctx context.Context) (bool, error) {
	return s.prov.BucketExists(ctx)
}

// ListAll drains the bucket listing.
func (s *ProviderStore) ListAll(ctx context.Context) ([]string, error) {
	return provider.ListAll(ctx, s.prov, "")
}

// ObjectExists maps ErrNotFound from Head to false.
func (s *ProviderStore) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := s.prov.Head(ctx, key)
	if err == nil {
		return true, nil
	}
	if provider.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

// CreateFolder writes a private zero-byte marker at key.
func (s *ProviderStore) CreateFolder(ctx context.Context, key string) error {
	return s.prov.PutFolderMarker(ctx, key)
}

// Close closes the underlying provider.
func (s *ProviderStore) Close() error {
	return s.prov.Close()
}
