package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/appdeploy/pkg/provider"
)

// memProvider is a single-page BucketProvider backed by a key set.
type memProvider struct {
	keys    []string
	headErr error
	markers []string
	closed  bool
}

func (m *memProvider) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	res := &provider.ListResult{}
	for _, k := range m.keys {
		res.Objects = append(res.Objects, provider.ObjectSummary{Key: k})
	}
	return res, nil
}

func (m *memProvider) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	if m.headErr != nil {
		return nil, m.headErr
	}
	for _, k := range m.keys {
		if k == key {
			return &provider.ObjectMeta{ObjectSummary: provider.ObjectSummary{Key: k}}, nil
		}
	}
	return nil, &provider.ProviderError{Op: "Head", Provider: provider.ProviderS3, Key: key, Err: provider.ErrNotFound}
}

func (m *memProvider) Close() error {
	m.closed = true
	return nil
}

func (m *memProvider) BucketExists(ctx context.Context) (bool, error) {
	return len(m.keys) > 0, nil
}

func (m *memProvider) PutFolderMarker(ctx context.Context, key string) error {
	m.markers = append(m.markers, key)
	m.keys = append(m.keys, key)
	return nil
}

func TestProviderStore(t *testing.T) {
	prov := &memProvider{keys: []string{"app1/", "app1/a.yml"}}
	store := NewProviderStore(prov)
	ctx := context.Background()
	assert.Same(t, prov, store.Provider())

	ok, err := store.BucketExists(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	keys, err := store.ListAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"app1/", "app1/a.yml"}, keys)

	ok, err = store.ObjectExists(ctx, "app1/")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.ObjectExists(ctx, "app2/")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.CreateFolder(ctx, "app2/"))
	assert.Equal(t, []string{"app2/"}, prov.markers)

	require.NoError(t, store.Close())
	assert.True(t, prov.closed)
}

func TestProviderStore_ObjectExistsError(t *testing.T) {
	boom := errors.New("boom")
	store := NewProviderStore(&memProvider{headErr: boom})

	_, err := store.ObjectExists(context.Background(), "x/")
	assert.ErrorIs(t, err, boom)
}
