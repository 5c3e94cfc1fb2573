// Package restore implements the delete, wait-until-absent, restore sequence
// for an index restored from a snapshot.
package restore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"k8s.io/utils/clock"

	"github.com/stackvista/es-restore/internal/logger"
)

const (
	// DefaultPollInterval is the time between index existence checks
	DefaultPollInterval = 2 * time.Second
	// DefaultDeleteTimeout bounds how long the index may keep existing after the delete request
	DefaultDeleteTimeout = 300 * time.Second

	progressMarker = "."
)

var (
	// ErrMissingArguments means the snapshot name or index was not given
	ErrMissingArguments = errors.New("you must use the --restore and --index [index] options with --snapshot-name")
	// ErrDeleteTimeout means the index still existed when the delete timeout elapsed
	ErrDeleteTimeout = errors.New("timed out waiting for index deletion")
	// ErrAborted means the operator declined the confirmation
	ErrAborted = errors.New("restore aborted by operator")
)

// Client is the subset of Elasticsearch operations the workflow drives
type Client interface {
	IndexExists(ctx context.Context, indices string) (bool, error)
	DeleteIndex(ctx context.Context, index string) (int, error)
	RestoreIndex(ctx context.Context, repository, snapshotName, index string) (int, error)
}

// Clock is the time source of the wait loop
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
	Sleep(d time.Duration)
}

// Options selects what to restore and how long to wait for the deletion
type Options struct {
	Repository    string
	SnapshotName  string
	Index         string
	PollInterval  time.Duration
	DeleteTimeout time.Duration
}

// Validate checks the options required before anything is touched
func (o Options) Validate() error {
	if o.SnapshotName == "" || o.Index == "" {
		return ErrMissingArguments
	}
	return nil
}

// Result reports the HTTP outcome of the two mutating calls.
// DeleteErr is set when the delete request never got a response.
type Result struct {
	DeleteStatus  int
	DeleteErr     error
	RestoreStatus int
}

// Restored reports whether the cluster accepted the restore request
func (r *Result) Restored() bool {
	return r.RestoreStatus == http.StatusOK
}

// Workflow runs one restore
type Workflow struct {
	client   Client
	confirm  Confirmer
	clock    Clock
	log      *logger.Logger
	progress io.Writer
}

// Option customises a Workflow
type Option func(*Workflow)

// WithClock replaces the wall clock, used by tests to simulate the wait
func WithClock(c Clock) Option {
	return func(w *Workflow) {
		w.clock = c
	}
}

// NewWorkflow creates a workflow driving client, asking confirm before deleting anything
func NewWorkflow(client Client, confirm Confirmer, log *logger.Logger, opts ...Option) *Workflow {
	w := &Workflow{
		client:   client,
		confirm:  confirm,
		clock:    clock.RealClock{},
		log:      log,
		progress: log.Progress(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run deletes the index, waits until it is gone and restores it from the snapshot.
// A restore answered with a non-200 status is logged and is not an error.
func (w *Workflow) Run(ctx context.Context, opts Options) (*Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.DeleteTimeout <= 0 {
		opts.DeleteTimeout = DefaultDeleteTimeout
	}

	w.log.Warningf("Restoring an index necessitates the deletion of any existing index with the same name.")
	if err := w.confirm.Confirm("Proceed? (press Enter to continue, CTRL-C to abort)"); err != nil {
		return nil, err
	}

	result := &Result{}

	w.log.Infof("Sending delete request for index %s.", opts.Index)
	result.DeleteStatus, result.DeleteErr = w.client.DeleteIndex(ctx, opts.Index)
	if result.DeleteErr != nil {
		w.log.Errorf("Delete index %s was not confirmed: %v", opts.Index, result.DeleteErr)
	} else {
		w.log.Infof("Delete index: %s, response status code: %d", opts.Index, result.DeleteStatus)
	}

	w.log.Infof("Waiting for index %s to be deleted...", opts.Index)
	if err := w.waitForAbsence(ctx, opts); err != nil {
		return result, err
	}

	w.log.Infof("Sending restore request for index: %s, from snapshot: %s.", opts.Index, opts.SnapshotName)
	status, err := w.client.RestoreIndex(ctx, opts.Repository, opts.SnapshotName, opts.Index)
	if err != nil {
		return result, fmt.Errorf("failed to restore index %s: %w", opts.Index, err)
	}
	result.RestoreStatus = status

	if result.Restored() {
		w.log.Successf("Restore index %s response status code: %d", opts.Index, status)
	} else {
		w.log.Errorf("Restore index %s failed, response status code: %d", opts.Index, status)
	}

	w.log.Infof("Done.")
	return result, nil
}

// waitForAbsence polls until no listed index exists or the delete timeout elapses
func (w *Workflow) waitForAbsence(ctx context.Context, opts Options) error {
	start := w.clock.Now()
	for {
		if err := ctx.Err(); err != nil {
			_, _ = fmt.Fprintln(w.progress)
			return fmt.Errorf("stopped waiting for index %s deletion: %w", opts.Index, err)
		}

		exists, err := w.client.IndexExists(ctx, opts.Index)
		if err != nil {
			_, _ = fmt.Fprintln(w.progress)
			return fmt.Errorf("failed to check index %s existence: %w", opts.Index, err)
		}
		if !exists {
			_, _ = fmt.Fprintln(w.progress)
			return nil
		}

		_, _ = fmt.Fprint(w.progress, progressMarker)
		if elapsed := w.clock.Since(start); elapsed > opts.DeleteTimeout {
			_, _ = fmt.Fprintln(w.progress)
			return fmt.Errorf("%w: index %s still exists after %s", ErrDeleteTimeout, opts.Index, elapsed.Round(time.Second))
		}

		w.clock.Sleep(opts.PollInterval)
	}
}
