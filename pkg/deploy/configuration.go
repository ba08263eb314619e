// Package deploy sequences a deployment run: git and changelog gates, folder
// reconciliation of the configuration bucket, and application selection.
//
// Failures are returned as *Error values classified by Kind (precondition,
// configuration, usage, storage). None are retried.
package deploy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/3leaps/appdeploy/pkg/match"
	"github.com/3leaps/appdeploy/pkg/reconcile"
)

// FolderAction describes what Verify did with one folder marker.
type FolderAction string

const (
	// FolderCreated means the marker was written.
	FolderCreated FolderAction = "created"

	// FolderExists means the marker was already present and skipped.
	FolderExists FolderAction = "exists"

	// FolderPlanned means the marker would be written (dry-run).
	FolderPlanned FolderAction = "planned"
)

// FolderEvent is reported for every folder Verify considers.
type FolderEvent struct {
	Key    string
	Depth  int
	Action FolderAction
}

// Option configures a Configuration.
type Option func(*Configuration)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Configuration) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMatcher narrows Apps to names accepted by m.
func WithMatcher(m *match.Matcher) Option {
	return func(c *Configuration) { c.matcher = m }
}

// WithDryRun makes Verify report missing folders without writing them.
func WithDryRun(dryRun bool) Option {
	return func(c *Configuration) { c.dryRun = dryRun }
}

// WithFolderObserver registers fn to receive a FolderEvent per folder.
func WithFolderObserver(fn func(FolderEvent)) Option {
	return func(c *Configuration) { c.onFolder = fn }
}

// Configuration reconciles the folder markers of one configuration bucket
// and exposes its applications.
//
// State lives for a single run: Verify lists the bucket fresh every time and
// nothing is cached across runs. A Configuration is not safe for concurrent
// use.
type Configuration struct {
	store    Store
	bucket   string
	logger   *zap.Logger
	matcher  *match.Matcher
	dryRun   bool
	onFolder func(FolderEvent)

	listing  []string
	apps     []reconcile.Application
	created  []string
	verified bool
}

// NewConfiguration creates a Configuration for bucket backed by store.
func NewConfiguration(store Store, bucket string, opts ...Option) *Configuration {
	c := &Configuration{
		store:  store,
		bucket: bucket,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bucket returns the configuration bucket name.
func (c *Configuration) Bucket() string {
	return c.bucket
}

// Verify checks that the bucket exists and is non-empty, then creates every
// missing folder marker in ascending depth order, one at a time. Markers that
// already exist are skipped, so a re-run is a no-op.
//
// If a storage call fails midway, CreatedFolders reports the markers written
// before the failure.
func (c *Configuration) Verify(ctx context.Context) error {
	c.verified = false
	c.apps = nil
	c.created = []string{}

	exists, err := c.store.BucketExists(ctx)
	if err != nil {
		return storageError("Verify", err)
	}
	if !exists {
		return c.notFoundOrEmpty()
	}

	keys, err := c.store.ListAll(ctx)
	if err != nil {
		return storageError("Verify", err)
	}
	if len(keys) == 0 {
		return c.notFoundOrEmpty()
	}
	c.listing = keys

	folders := reconcile.ComputeMissingFolders(keys)
	c.logger.Debug("Computed folder plan",
		zap.String("bucket", c.bucket),
		zap.Int("objects", len(keys)),
		zap.Int("folders", len(folders)),
		zap.Bool("dry_run", c.dryRun))

	for _, folder := range folders {
		if err := c.ensureFolder(ctx, folder); err != nil {
			return err
		}
	}

	c.verified = true
	c.logger.Info("Configuration bucket verified",
		zap.String("bucket", c.bucket),
		zap.Int("created", len(c.created)))
	return nil
}

// ensureFolder creates folder unless it already exists.
func (c *Configuration) ensureFolder(ctx context.Context, folder string) error {
	exists, err := c.store.ObjectExists(ctx, folder)
	if err != nil {
		return storageError("Verify", err)
	}
	if exists {
		c.emit(folder, FolderExists)
		return nil
	}

	if c.dryRun {
		c.created = append(c.created, folder)
		c.emit(folder, FolderPlanned)
		return nil
	}

	if err := c.store.CreateFolder(ctx, folder); err != nil {
		return storageError("Verify", err)
	}
	c.created = append(c.created, folder)
	c.logger.Debug("Created folder marker", zap.String("bucket", c.bucket), zap.String("key", folder))
	c.emit(folder, FolderCreated)
	return nil
}

func (c *Configuration) emit(key string, action FolderAction) {
	if c.onFolder == nil {
		return
	}
	c.onFolder(FolderEvent{Key: key, Depth: reconcile.Depth(key), Action: action})
}

func (c *Configuration) notFoundOrEmpty() error {
	return newError(KindConfiguration, "Verify",
		fmt.Sprintf("configuration bucket %s not found or empty", c.bucket), nil)
}

// Apps returns the applications of the listing taken by the last Verify.
//
// Applications come from the listing as it was before any folder was
// created; Verify does not re-list. Calling Apps before a successful Verify
// is a usage error.
func (c *Configuration) Apps() ([]reconcile.Application, error) {
	if !c.verified {
		return nil, newError(KindUsage, "Apps", "asked for app list without verifying", nil)
	}
	if c.apps == nil {
		all := reconcile.FilterApplications(c.listing)
		if c.matcher.IsEmpty() {
			c.apps = all
			return c.apps, nil
		}
		apps := make([]reconcile.Application, 0, len(all))
		for _, app := range all {
			if c.matcher.Match(app.Name) {
				apps = append(apps, app)
			}
		}
		c.apps = apps
	}
	return c.apps, nil
}

// CreatedFolders returns the markers written by the last Verify (or, in
// dry-run mode, the markers it would have written). Empty before Verify.
func (c *Configuration) CreatedFolders() []string {
	out := make([]string, len(c.created))
	copy(out, c.created)
	return out
}

// Listing returns the keys seen by the last Verify.
func (c *Configuration) Listing() []string {
	out := make([]string, len(c.listing))
	copy(out, c.listing)
	return out
}

// Verified reports whether the last Verify succeeded.
func (c *Configuration) Verified() bool {
	return c.verified
}
