//go:build cloudintegration

package s3_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/appdeploy/pkg/provider"
	"github.com/3leaps/appdeploy/pkg/provider/s3"
	"github.com/3leaps/appdeploy/test/cloudtest"
)

func newMotoProvider(t *testing.T, ctx context.Context, bucket string) *s3.Provider {
	t.Helper()
	p, err := s3.New(ctx, cloudtest.ProviderConfig(bucket))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestProvider_BucketExists_CloudIntegration(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	t.Run("existing bucket", func(t *testing.T) {
		bucket := cloudtest.CreateBucket(t, ctx)
		p := newMotoProvider(t, ctx, bucket)

		ok, err := p.BucketExists(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("missing bucket", func(t *testing.T) {
		p := newMotoProvider(t, ctx, "nonexistent-bucket-12345")

		ok, err := p.BucketExists(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestProvider_ListAll_CloudIntegration(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	bucket := cloudtest.CreateBucket(t, ctx)
	cloudtest.PutObjects(t, ctx, bucket, []string{"app1/settings.yml", "app2/sub/env.yml", "readme.md"})

	p := newMotoProvider(t, ctx, bucket)

	keys, err := provider.ListAll(ctx, p, "")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"app1/settings.yml", "app2/sub/env.yml", "readme.md"}, keys)
}

func TestProvider_PutFolderMarker_CloudIntegration(t *testing.T) {
	cloudtest.SkipIfUnavailable(t)
	ctx := context.Background()

	bucket := cloudtest.CreateBucket(t, ctx)
	p := newMotoProvider(t, ctx, bucket)

	require.NoError(t, p.PutFolderMarker(ctx, "app1/"))

	meta, err := p.Head(ctx, "app1/")
	require.NoError(t, err)
	assert.Equal(t, "app1/", meta.Key)
	assert.Zero(t, meta.Size)

	_, err = p.Head(ctx, "app2/")
	require.Error(t, err)
	assert.True(t, provider.IsNotFound(err))
}
