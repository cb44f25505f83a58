// Package engine owns the in-memory planner document. Queries read it; every
// mutation re-serialises the whole document to the store.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/jmhodges/clock"

	"github.com/hpungsan/lifegrid/internal/calendar"
	"github.com/hpungsan/lifegrid/internal/document"
	"github.com/hpungsan/lifegrid/internal/errors"
	"github.com/hpungsan/lifegrid/internal/logger"
)

// Store persists the serialised document. Load returns nil, nil when nothing is stored.
type Store interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, body []byte) error
}

// Snapshotter is implemented by stores that can keep a copy of the document
// before it is replaced by a reset or an import.
type Snapshotter interface {
	Snapshot(ctx context.Context, reason string, body []byte) (string, error)
}

// Reviser is implemented by stores that stamp each save with a revision id.
type Reviser interface {
	Revision(ctx context.Context) (string, error)
}

// Options configures an Engine. Zero values select the defaults.
type Options struct {
	Clock                 clock.Clock
	Logger                *logger.Logger
	DefaultLifeExpectancy int
}

// Engine serialises access to one document.
type Engine struct {
	mu          sync.Mutex
	doc         *document.Document
	store       Store
	clock       clock.Clock
	log         *logger.Logger
	defaultLife int
}

// Open loads the stored document. A missing or unreadable document yields an
// empty one; the failure is logged, not returned.
func Open(ctx context.Context, store Store, opts Options) (*Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("open")
	}

	e := &Engine{
		store:       store,
		clock:       opts.Clock,
		log:         opts.Logger,
		defaultLife: opts.DefaultLifeExpectancy,
	}
	if e.clock == nil {
		e.clock = clock.New()
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	if e.defaultLife <= 0 {
		e.defaultLife = document.DefaultLifeExpectancy
	}

	body, err := store.Load(ctx)
	switch {
	case err != nil:
		e.log.Warn("store unavailable, starting with an empty document", "error", err)
		e.doc = document.New(e.defaultLife)
	case body == nil:
		e.doc = document.New(e.defaultLife)
	default:
		doc, perr := document.Parse(body, e.defaultLife)
		if perr != nil {
			e.log.Warn("stored document is corrupt, starting with an empty document", "error", perr)
			doc = document.New(e.defaultLife)
		}
		e.doc = doc
	}
	return e, nil
}

// Now returns the engine clock's current time.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// Today returns the clock's current date.
func (e *Engine) Today() calendar.Date {
	return calendar.DateOf(e.clock.Now())
}

// read runs fn with the lock held. fn must not retain d.
func (e *Engine) read(fn func(d *document.Document)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.doc)
}

// mutate applies fn to a copy of the document, saves the copy and only then
// makes it current. A failed save leaves the previous document in place.
func (e *Engine) mutate(ctx context.Context, op string, fn func(d *document.Document) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return errors.NewCancelled(op)
	}

	next, err := e.doc.Clone()
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := fn(next); err != nil {
		return err
	}
	return e.commit(ctx, op, next)
}

// commit persists next and swaps it in. Caller holds e.mu.
func (e *Engine) commit(ctx context.Context, op string, next *document.Document) error {
	body, err := document.Encode(next)
	if err != nil {
		return errors.NewInternal(err)
	}
	if err := e.store.Save(ctx, body); err != nil {
		e.log.Error("failed to save document", "operation", op, "error", err)
		if errors.Is(err, errors.ErrStoreUnavailable) {
			return err
		}
		return errors.NewStoreUnavailable(err)
	}
	e.doc = next
	e.log.Debug("document saved", "operation", op, "bytes", len(body))
	return nil
}

// snapshot keeps the current document when the store supports it. Caller holds e.mu.
func (e *Engine) snapshot(ctx context.Context, reason string) error {
	snap, ok := e.store.(Snapshotter)
	if !ok {
		return nil
	}
	body, err := document.Encode(e.doc)
	if err != nil {
		return errors.NewInternal(err)
	}
	id, err := snap.Snapshot(ctx, reason, body)
	if err != nil {
		e.log.Error("failed to snapshot document", "reason", reason, "error", err)
		return err
	}
	e.log.Info("document snapshot taken", "reason", reason, "id", id)
	return nil
}

// Theme returns "light" or "dark".
func (e *Engine) Theme() string {
	var theme string
	e.read(func(d *document.Document) { theme = d.Settings.Theme })
	return theme
}

// SetTheme persists the presentation theme.
func (e *Engine) SetTheme(ctx context.Context, theme string) error {
	if theme != document.ThemeLight && theme != document.ThemeDark {
		return errors.NewInvalidRequest("theme must be light or dark")
	}
	return e.mutate(ctx, "set_theme", func(d *document.Document) error {
		d.Settings.Theme = theme
		return nil
	})
}

// Export returns the whole document as indented JSON.
func (e *Engine) Export() ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	body, err := document.Encode(e.doc)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return body, nil
}

// Import shallow-merges the top-level keys of data onto the current document,
// backfills the result and persists it. Malformed data changes nothing.
func (e *Engine) Import(ctx context.Context, data []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return errors.NewCancelled("import")
	}

	merged, err := document.Merge(e.doc, data, e.defaultLife)
	if err != nil {
		return errors.NewMalformedImport(err)
	}
	if err := e.snapshot(ctx, "import"); err != nil {
		return err
	}
	return e.commit(ctx, "import", merged)
}

// Reset replaces the document with an empty one.
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return errors.NewCancelled("reset")
	}
	if err := e.snapshot(ctx, "reset"); err != nil {
		return err
	}
	return e.commit(ctx, "reset", document.New(e.defaultLife))
}
