// Package reconcile folds pending file actions into the project tree.
package reconcile

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/0-chirag-s/sitecrafter/api"
	"github.com/0-chirag-s/sitecrafter/internal/tree"
)

// SweepMode selects which actions a pass marks completed.
type SweepMode string

const (
	// SweepAll marks every action in the list completed after a pass that
	// had pending work, whatever its kind.
	SweepAll SweepMode = "all"
	// SweepFolded marks only the file actions handled in this pass
	// (applied, rejected or dropped). Other kinds keep their status for
	// whichever consumer owns them.
	SweepFolded SweepMode = "folded"
)

// ParseSweepMode parses a sweep mode name. Empty selects SweepAll.
func ParseSweepMode(s string) (SweepMode, error) {
	switch SweepMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SweepAll:
		return SweepAll, nil
	case SweepFolded:
		return SweepFolded, nil
	default:
		return "", fmt.Errorf("unknown sweep mode %q (want %q or %q)", s, SweepAll, SweepFolded)
	}
}

// Target is the mutation surface the reconciler writes through.
type Target interface {
	UpsertFile(path, content string) (bool, error)
}

// Reconciler applies action batches to a Target.
type Reconciler struct {
	Target Target
	Sweep  SweepMode
	Logger *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithSweep sets the completion sweep mode.
func WithSweep(m SweepMode) Option {
	return func(r *Reconciler) { r.Sweep = m }
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) {
		if l != nil {
			r.Logger = l
		}
	}
}

func New(target Target, opts ...Option) *Reconciler {
	r := &Reconciler{
		Target: target,
		Sweep:  SweepAll,
		Logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Result describes one reconciliation pass. Bitmaps hold indices into the
// action list passed to Reconcile.
type Result struct {
	Pending   *roaring.Bitmap // pending at the start of the pass
	Applied   *roaring.Bitmap // file actions folded into the tree
	Rejected  *roaring.Bitmap // file actions refused with a kind conflict
	Dropped   *roaring.Bitmap // file actions without a path
	Completed *roaring.Bitmap // actions whose status changed to completed
	Created   int             // files created
	Updated   int             // files overwritten
}

func newResult() Result {
	return Result{
		Pending:   roaring.New(),
		Applied:   roaring.New(),
		Rejected:  roaring.New(),
		Dropped:   roaring.New(),
		Completed: roaring.New(),
	}
}

// Changed reports whether the pass mutated the tree.
func (r Result) Changed() bool {
	return r.Created+r.Updated > 0
}

// Reconcile applies every pending file action in actions to the target, in
// order, then runs the completion sweep. Statuses are updated in place.
//
// With no pending actions it does nothing. Kind conflicts do not stop the
// pass; they are returned joined once the sweep is done.
func (r *Reconciler) Reconcile(actions []api.Action) (Result, error) {
	res := newResult()
	for i, a := range actions {
		if a.IsPending() {
			res.Pending.Add(uint32(i))
		}
	}
	if res.Pending.IsEmpty() {
		return res, nil
	}

	var errs []error
	it := res.Pending.Iterator()
	for it.HasNext() {
		i := it.Next()
		a := actions[i]
		if !a.IsCreateFile() {
			continue
		}

		created, err := r.Target.UpsertFile(a.Path, a.Payload)
		switch {
		case errors.Is(err, tree.ErrEmptyPath):
			r.Logger.Debug("dropping file action without path", "index", i, "title", a.Title)
			res.Dropped.Add(i)
		case err != nil:
			r.Logger.Warn("rejecting file action", "index", i, "path", a.Path, "error", err)
			res.Rejected.Add(i)
			errs = append(errs, fmt.Errorf("action %d: %w", i, err))
		default:
			res.Applied.Add(i)
			if created {
				res.Created++
			} else {
				res.Updated++
			}
		}
	}

	r.sweep(actions, &res)

	r.Logger.Debug("reconciled actions",
		"pending", res.Pending.GetCardinality(),
		"applied", res.Applied.GetCardinality(),
		"rejected", res.Rejected.GetCardinality(),
		"dropped", res.Dropped.GetCardinality(),
		"created", res.Created,
		"updated", res.Updated,
	)
	return res, errors.Join(errs...)
}

func (r *Reconciler) sweep(actions []api.Action, res *Result) {
	var handled *roaring.Bitmap
	if r.Sweep == SweepFolded {
		handled = roaring.Or(res.Applied, res.Rejected)
		handled.Or(res.Dropped)
	}
	for i := range actions {
		if handled != nil && !handled.Contains(uint32(i)) {
			continue
		}
		if actions[i].Status != api.StatusCompleted {
			res.Completed.Add(uint32(i))
		}
		actions[i].Status = api.StatusCompleted
	}
}
