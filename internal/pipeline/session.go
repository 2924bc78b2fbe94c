package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/images"
	"github.com/conneroisu/folio/internal/kvstore"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/variables"
)

const (
	// DefaultDebounce delays a run until edits pause.
	DefaultDebounce = 300 * time.Millisecond

	// VariablesKey holds the persisted variable set.
	VariablesKey = "session/variables"
	// ImagePrefix prefixes persisted image data URIs.
	ImagePrefix = "image/"
)

// Session owns one editing session: the document text, the variable set,
// the image index and the latest result. Only results from the most recent
// generation reach subscribers.
type Session struct {
	pipeline *Pipeline
	resolver *images.Resolver
	store    kvstore.Store
	logger   logging.Logger
	debounce time.Duration
	floor    time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	text   string
	vars   *variables.Set
	index  *images.Index
	timer  *time.Timer
	latest uint64
	last   *Result

	notifyMu    sync.Mutex
	delivered   uint64
	subscribers map[int]func(*Result)
	nextSub     int
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDebounce sets the quiet period before a scheduled run.
func WithDebounce(d time.Duration) SessionOption {
	return func(s *Session) { s.debounce = d }
}

// WithStore persists variables and images to store.
func WithStore(store kvstore.Store) SessionOption {
	return func(s *Session) { s.store = store }
}

// WithResolver sets the image resolver used by Upload.
func WithResolver(r *images.Resolver) SessionOption {
	return func(s *Session) { s.resolver = r }
}

// WithBatchFloor sets the minimum duration of an upload batch.
func WithBatchFloor(d time.Duration) SessionOption {
	return func(s *Session) { s.floor = d }
}

// WithSessionLogger sets the session logger.
func WithSessionLogger(logger logging.Logger) SessionOption {
	return func(s *Session) { s.logger = logging.OrNop(logger) }
}

// NewSession creates a session around p. With a store configured, the
// persisted variables and images are restored.
func NewSession(p *Pipeline, opts ...SessionOption) (*Session, error) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		pipeline:    p,
		logger:      logging.NopLogger{},
		debounce:    DefaultDebounce,
		floor:       images.DefaultBatchFloor,
		ctx:         ctx,
		cancel:      cancel,
		vars:        variables.NewSet(),
		index:       images.NewIndex(),
		subscribers: make(map[int]func(*Result)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("session")
	if s.resolver == nil {
		s.resolver = images.NewResolver(images.DefaultConfig(), s.logger)
	}

	if s.store != nil {
		if err := s.restore(); err != nil {
			cancel()
			return nil, err
		}
	}
	return s, nil
}

func (s *Session) restore() error {
	data, err := s.store.Get(VariablesKey)
	switch {
	case err == nil:
		vars, err := variables.Decode(data)
		if err != nil {
			return fmt.Errorf("failed to restore variables: %w", err)
		}
		s.vars.Replace(vars)
	case !stderrors.Is(err, kvstore.ErrNotFound):
		return fmt.Errorf("failed to restore variables: %w", err)
	}

	keys, err := s.store.Keys(ImagePrefix)
	if err != nil {
		return fmt.Errorf("failed to restore images: %w", err)
	}
	for _, key := range keys {
		uri, err := kvstore.GetString(s.store, key)
		if err != nil {
			continue
		}
		img, err := images.FromDataURI(strings.TrimPrefix(key, ImagePrefix), uri)
		if err != nil {
			s.logger.Warn(s.ctx, err, "skipping stored image", "key", key)
			continue
		}
		s.index.Add(img)
	}
	return nil
}

// Text returns the current document text.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text
}

// Variables returns a copy of the variable set.
func (s *Session) Variables() *variables.Set {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vars.Clone()
}

// Images returns the session's image index.
func (s *Session) Images() *images.Index {
	return s.index
}

// Latest returns the most recent delivered result, or nil.
func (s *Session) Latest() *Result {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	return s.last
}

// Subscribe registers fn for every fresh result and returns a function
// that removes it.
func (s *Session) Subscribe(fn func(*Result)) func() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn
	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.subscribers, id)
	}
}

// Update replaces the document text and schedules a debounced run. A
// pending run is superseded.
func (s *Session) Update(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
	s.schedule()
}

// SetVariable adds or updates one variable, persists the set and schedules
// a run.
func (s *Session) SetVariable(v variables.Variable) error {
	s.mu.Lock()
	s.vars.Put(v)
	s.mu.Unlock()
	s.schedule()
	return s.saveVariables()
}

// RemoveVariable deletes a variable by name.
func (s *Session) RemoveVariable(name string) error {
	s.mu.Lock()
	removed := s.vars.Remove(name)
	s.mu.Unlock()
	if !removed {
		return nil
	}
	s.schedule()
	return s.saveVariables()
}

// Load replaces the text and the whole variable set, as when a template is
// opened, and runs immediately.
func (s *Session) Load(ctx context.Context, text string, vars *variables.Set) (*Result, error) {
	s.mu.Lock()
	s.text = text
	s.vars.Replace(vars.All())
	s.mu.Unlock()

	if err := s.saveVariables(); err != nil {
		return nil, err
	}
	return s.Flush(ctx), nil
}

// Flush cancels any pending debounce and runs now. The result is returned
// even when a newer run has superseded it.
func (s *Session) Flush(ctx context.Context) *Result {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	return s.run(ctx)
}

// Upload ingests assets in order. The batch is discarded with a StaleResult
// error when the image index was reset while it ran; otherwise the images
// are indexed, persisted and a run is scheduled.
func (s *Session) Upload(ctx context.Context, assets []images.Asset, progress func(images.Progress)) (*images.BatchResult, error) {
	epoch := s.index.Epoch()

	result, err := s.resolver.Batch(ctx, assets, images.BatchOptions{Floor: s.floor, Progress: progress})
	if err != nil {
		return result, err
	}

	s.mu.Lock()
	if s.index.Epoch() != epoch {
		s.mu.Unlock()
		s.logger.Info(ctx, "discarding upload batch after image reset", "images", len(result.Images))
		return result, errors.New(errors.KindStaleResult, errors.CodeStaleResult,
			"image store was reset while the upload was in progress")
	}
	for _, img := range result.Images {
		s.index.Add(img)
	}
	s.mu.Unlock()

	if s.store != nil {
		for _, img := range result.Images {
			if err := s.store.Set(ImagePrefix+img.Name, []byte(img.DataURI)); err != nil {
				return result, fmt.Errorf("failed to persist image %s: %w", img.Name, err)
			}
		}
	}

	if len(result.Images) > 0 {
		s.schedule()
	}
	return result, nil
}

// ResetImages empties the image index and the persisted images.
func (s *Session) ResetImages() error {
	s.mu.Lock()
	s.index.Reset()
	s.mu.Unlock()
	if s.store != nil {
		if _, err := kvstore.DeletePrefix(s.store, ImagePrefix); err != nil {
			return fmt.Errorf("failed to reset images: %w", err)
		}
	}
	s.schedule()
	return nil
}

// Close stops pending work.
func (s *Session) Close() {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()
	s.cancel()
}

func (s *Session) schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		s.run(s.ctx)
	})
}

func (s *Session) run(ctx context.Context) *Result {
	s.mu.Lock()
	gen := s.pipeline.NextGeneration()
	s.latest = gen
	in := Input{Text: s.text, Variables: s.vars.Clone(), Images: s.index}
	s.mu.Unlock()

	result := s.pipeline.RunGeneration(ctx, gen, in)
	s.deliver(result)
	return result
}

func (s *Session) deliver(result *Result) {
	s.mu.Lock()
	latest := s.latest
	s.mu.Unlock()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	if result.Generation < latest || result.Generation <= s.delivered {
		s.logger.Debug(s.ctx, "discarding stale result", "generation", result.Generation, "latest", latest)
		return
	}
	s.delivered = result.Generation
	s.last = result
	for _, fn := range s.subscribers {
		fn(result)
	}
}

func (s *Session) saveVariables() error {
	if s.store == nil {
		return nil
	}
	s.mu.Lock()
	data, err := variables.Encode(s.vars.All())
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to encode variables: %w", err)
	}
	if err := s.store.Set(VariablesKey, data); err != nil {
		return fmt.Errorf("failed to persist variables: %w", err)
	}
	return nil
}
