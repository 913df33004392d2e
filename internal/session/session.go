// Package session owns one project tree for the lifetime of a build
// session and pushes a fresh mount descriptor to the sandbox after every
// change.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/0-chirag-s/sitecrafter/api"
	"github.com/0-chirag-s/sitecrafter/internal/metrics"
	"github.com/0-chirag-s/sitecrafter/internal/mount"
	"github.com/0-chirag-s/sitecrafter/internal/reconcile"
	"github.com/0-chirag-s/sitecrafter/internal/tree"
)

// Recorder persists incoming batches, and edits as one-action batches,
// before they are applied.
type Recorder interface {
	Append(ctx context.Context, session string, batch []api.Action) (int64, error)
}

// Session serialises every mutation of its tree. Receive and Edit are the
// only ways in.
type Session struct {
	ID string

	mu       sync.Mutex
	tree     *tree.Tree
	rec      *reconcile.Reconciler
	sandbox  mount.Sandbox
	recorder Recorder
	logger   *slog.Logger
	sweep    reconcile.SweepMode
	actions  []api.Action
}

// Option configures a Session.
type Option func(*Session)

// WithSandbox sets where descriptors are mounted. Default: mount.Discard.
func WithSandbox(sb mount.Sandbox) Option {
	return func(s *Session) { s.sandbox = sb }
}

// WithRecorder journals every received batch.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSweep sets the reconciler's completion sweep mode.
func WithSweep(m reconcile.SweepMode) Option {
	return func(s *Session) { s.sweep = m }
}

// New starts a session with an empty tree.
func New(id string, opts ...Option) *Session {
	s := &Session{
		ID:      id,
		tree:    tree.New(),
		sandbox: mount.Discard,
		logger:  slog.Default(),
		sweep:   reconcile.SweepAll,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", id)
	s.rec = reconcile.New(s.tree,
		reconcile.WithSweep(s.sweep),
		reconcile.WithLogger(s.logger),
	)
	return s
}

// Receive queues a batch from the action source, reconciles the whole
// action list and, if the tree changed, mounts the new descriptor.
// Kind conflicts and mount failures are both returned; neither is retried.
func (s *Session) Receive(ctx context.Context, batch []api.Action) (reconcile.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recorder != nil && len(batch) > 0 {
		if _, err := s.recorder.Append(ctx, s.ID, batch); err != nil {
			return reconcile.Result{}, fmt.Errorf("record batch: %w", err)
		}
	}
	s.actions = append(s.actions, batch...)
	metrics.RecordBatch(len(batch))

	res, recErr := s.rec.Reconcile(s.actions)
	metrics.RecordFileActions(metrics.OutcomeApplied, res.Applied.GetCardinality())
	metrics.RecordFileActions(metrics.OutcomeRejected, res.Rejected.GetCardinality())
	metrics.RecordFileActions(metrics.OutcomeDropped, res.Dropped.GetCardinality())
	if !res.Changed() {
		return res, recErr
	}
	if err := s.mountLocked(ctx); err != nil {
		return res, errors.Join(recErr, err)
	}
	return res, recErr
}

// Edit replaces the content of an existing file and remounts. The edit is
// journaled as a pending file action, so a replay overwrites the same file.
func (s *Session) Edit(ctx context.Context, path, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.applyEdit(ctx, path, content); err != nil {
		metrics.RecordEdit(false)
		return err
	}
	metrics.RecordEdit(true)
	s.logger.Debug("edited file", "path", path, "bytes", len(content))
	return s.mountLocked(ctx)
}

func (s *Session) applyEdit(ctx context.Context, path, content string) error {
	n, err := s.tree.Get(path)
	if err != nil {
		return fmt.Errorf("edit %s: %w", path, err)
	}
	if n.IsDir() {
		return fmt.Errorf("edit %s: %w", path, tree.ErrNotAFile)
	}
	if s.recorder != nil {
		batch := []api.Action{{Kind: api.KindFile, Title: "edit", Path: path, Payload: content, Status: api.StatusPending}}
		if _, err := s.recorder.Append(ctx, s.ID, batch); err != nil {
			return fmt.Errorf("record edit: %w", err)
		}
	}
	return s.tree.Edit(path, content)
}

func (s *Session) mountLocked(ctx context.Context) error {
	desc := mount.ProjectTree(s.tree)
	metrics.SetTreeNodes(s.tree.Len())

	start := time.Now()
	err := s.sandbox.Mount(ctx, desc)
	metrics.RecordMount(time.Since(start), err == nil)
	if err != nil {
		s.logger.Error("sandbox mount failed", "error", err)
		return fmt.Errorf("mount: %w", err)
	}
	s.logger.Debug("mounted descriptor", "roots", desc.Len(), "nodes", s.tree.Len())
	return nil
}

// Tree exposes the tree for reading. Mutations go through Receive or Edit.
func (s *Session) Tree() tree.Reader { return s.tree.ReadOnly() }

// Descriptor projects the current tree.
func (s *Session) Descriptor() *api.Descriptor {
	return mount.ProjectTree(s.tree)
}

// Actions returns a copy of every action received so far with its status.
func (s *Session) Actions() []api.Action {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Action, len(s.actions))
	copy(out, s.actions)
	return out
}

// Close discards the tree and the action list.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tree.Reset()
	s.actions = nil
}
