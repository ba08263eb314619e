package preflight_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3leaps/appdeploy/pkg/output"
	"github.com/3leaps/appdeploy/pkg/preflight"
	"github.com/3leaps/appdeploy/pkg/provider"
)

type stubTarget struct {
	exists    bool
	existsErr error
	listErr   error
	lists     int
}

func (p *stubTarget) List(ctx context.Context, opts provider.ListOptions) (*provider.ListResult, error) {
	p.lists++
	if p.listErr != nil {
		return nil, p.listErr
	}
	return &provider.ListResult{}, nil
}

func (p *stubTarget) Head(ctx context.Context, key string) (*provider.ObjectMeta, error) {
	return nil, provider.ErrNotFound
}

func (p *stubTarget) Close() error { return nil }

func (p *stubTarget) BucketExists(ctx context.Context) (bool, error) {
	return p.exists, p.existsErr
}

func TestBucket_AllAllowed(t *testing.T) {
	rec, err := preflight.Bucket(context.Background(), &stubTarget{exists: true})
	require.NoError(t, err)

	require.Len(t, rec.Results, 2)
	assert.Equal(t, preflight.CapBucketExists, rec.Results[0].Capability)
	assert.True(t, rec.Results[0].Allowed)
	assert.Equal(t, preflight.CapObjectsList, rec.Results[1].Capability)
	assert.Equal(t, `List(prefix="",maxKeys=1)`, rec.Results[1].Method)
}

func TestBucket_StopsAtMissingBucket(t *testing.T) {
	target := &stubTarget{}
	_, err := preflight.Bucket(context.Background(), target)
	require.Error(t, err)
	assert.Zero(t, target.lists)
}

func TestBucket_Failures(t *testing.T) {
	tests := []struct {
		name    string
		target  *stubTarget
		results int
		code    string
	}{
		{"missing bucket", &stubTarget{exists: false}, 1, output.ErrCodeNotFound},
		{"head denied", &stubTarget{existsErr: provider.ErrAccessDenied}, 1, output.ErrCodeAccessDenied},
		{"list denied", &stubTarget{exists: true, listErr: provider.ErrAccessDenied}, 2, output.ErrCodeAccessDenied},
		{"list throttled", &stubTarget{exists: true, listErr: provider.ErrThrottled}, 2, output.ErrCodeThrottled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := preflight.Bucket(context.Background(), tt.target)
			require.Error(t, err)
			require.Len(t, rec.Results, tt.results)

			last := rec.Results[len(rec.Results)-1]
			assert.False(t, last.Allowed)
			assert.Equal(t, tt.code, last.ErrorCode)
			assert.NotEmpty(t, last.Detail)
		})
	}
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, output.ErrCodeAccessDenied, preflight.ErrorCode(provider.ErrMissingCredentials))
	assert.Equal(t, output.ErrCodeNotFound, preflight.ErrorCode(provider.ErrNotFound))
	assert.Equal(t, output.ErrCodeInternal, preflight.ErrorCode(errors.New("boom")))
}
