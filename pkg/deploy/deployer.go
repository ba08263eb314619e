package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3leaps/appdeploy/pkg/reconcile"
)

// Questions put to the operator during a run.
const (
	ChangelogQuestion = "Now hold on there for just a second, partner. Have you updated the changelog?"
	ChooseQuestion    = "Choose application to deploy, by index or name."
)

// Repository reports on the local source-control working tree.
type Repository interface {
	HasStagedChanges(ctx context.Context) (bool, error)
}

// Prompter asks the operator questions.
type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
	ChooseOne(ctx context.Context, question string, options []string) (string, error)
}

// StoreFactory opens the storage collaborator. It is only called once the
// git and changelog gates have passed.
type StoreFactory func(ctx context.Context) (Store, error)

// DeployerConfig wires a Deployer.
type DeployerConfig struct {
	Repo     Repository
	Prompter Prompter
	Stores   StoreFactory
	Bucket   string

	// Out receives operator-facing progress lines. Defaults to io.Discard.
	Out io.Writer

	Logger *zap.Logger

	// Options are passed to the Configuration built for each run.
	Options []Option

	// App preselects an application by name and skips the menu.
	App string
}

// Result describes a completed run.
type Result struct {
	RunID          string
	Tag            string
	Application    reconcile.Application
	CreatedFolders []string
}

// Deployer runs the interactive deployment sequence.
type Deployer struct {
	cfg    DeployerConfig
	out    io.Writer
	logger *zap.Logger
}

// NewDeployer validates cfg and returns a Deployer.
func NewDeployer(cfg DeployerConfig) (*Deployer, error) {
	switch {
	case cfg.Repo == nil:
		return nil, errors.New("deploy: repository is required")
	case cfg.Prompter == nil:
		return nil, errors.New("deploy: prompter is required")
	case cfg.Stores == nil:
		return nil, errors.New("deploy: store factory is required")
	case strings.TrimSpace(cfg.Bucket) == "":
		return nil, errors.New("deploy: bucket is required")
	}

	d := &Deployer{cfg: cfg, out: cfg.Out, logger: cfg.Logger}
	if d.out == nil {
		d.out = io.Discard
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	return d, nil
}

// Deploy runs the gates, reconciles the configuration bucket and returns the
// application the operator selected for tag.
func (d *Deployer) Deploy(ctx context.Context, tag string) (*Result, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, newError(KindPrecondition, "Deploy", "release tag is required", nil)
	}

	runID := uuid.NewString()
	logger := d.logger.With(zap.String("run_id", runID), zap.String("tag", tag))

	staged, err := d.cfg.Repo.HasStagedChanges(ctx)
	if err != nil {
		return nil, newError(KindPrecondition, "Deploy", "cannot inspect working tree", err)
	}
	if staged {
		return nil, newError(KindPrecondition, "Deploy", "you have staged changes, commit or unstage them first", nil)
	}

	ok, err := d.cfg.Prompter.Confirm(ctx, ChangelogQuestion)
	if err != nil {
		return nil, newError(KindPrecondition, "Deploy", "changelog not confirmed", err)
	}
	if !ok {
		return nil, newError(KindPrecondition, "Deploy", "changelog not updated, better hop to it", nil)
	}

	store, err := d.cfg.Stores(ctx)
	if err != nil {
		return nil, storageError("Deploy", err)
	}

	opts := append([]Option{WithLogger(logger)}, d.cfg.Options...)
	conf := NewConfiguration(store, d.cfg.Bucket, opts...)

	d.printf("Checking available configurations... Please wait...\n")
	if err := conf.Verify(ctx); err != nil {
		return nil, err
	}
	created := conf.CreatedFolders()
	for _, folder := range created {
		d.printf("\tCreated %s\n", folder)
	}
	d.printf("Check done.\n")

	apps, err := conf.Apps()
	if err != nil {
		return nil, err
	}
	if len(apps) == 0 {
		return nil, newError(KindConfiguration, "Deploy",
			fmt.Sprintf("configuration bucket %s has no applications", conf.Bucket()), nil)
	}

	name, err := d.choose(ctx, apps)
	if err != nil {
		return nil, err
	}

	app, ok := findApp(apps, name)
	if !ok {
		return nil, newError(KindUsage, "Deploy", fmt.Sprintf("unknown application %q", name), nil)
	}
	d.printf("Selected %q.\n", app.Name)

	logger.Info("Application selected",
		zap.String("bucket", conf.Bucket()),
		zap.String("app", app.Name),
		zap.Int("created_folders", len(created)))

	return &Result{
		RunID:          runID,
		Tag:            tag,
		Application:    app,
		CreatedFolders: created,
	}, nil
}

func (d *Deployer) choose(ctx context.Context, apps []reconcile.Application) (string, error) {
	if d.cfg.App != "" {
		return d.cfg.App, nil
	}

	names := make([]string, len(apps))
	for i, app := range apps {
		names[i] = app.Name
	}

	d.printf("Configured applications are:\n")
	name, err := d.cfg.Prompter.ChooseOne(ctx, ChooseQuestion, names)
	if err != nil {
		return "", newError(KindUsage, "Deploy", "no application chosen", err)
	}
	return name, nil
}

// findApp resolves name to the application whose marker is name + "/".
func findApp(apps []reconcile.Application, name string) (reconcile.Application, bool) {
	key := name + reconcile.Separator
	for _, app := range apps {
		if app.Key == key {
			return app, true
		}
	}
	return reconcile.Application{}, false
}

func (d *Deployer) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(d.out, format, args...)
}
