// Package app provides the central state container for the random user browser.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/illmade-knight/random-user/internal/metrics"
	"github.com/illmade-knight/random-user/pkg/users"
	"github.com/rs/zerolog"
)

// DefaultResultsPerPage matches the page size the mobile client requested.
const DefaultResultsPerPage = 30

// UserFetcher defines the interface for a component that can fetch one page of users.
type UserFetcher interface {
	GetUsers(ctx context.Context, page, results int) ([]users.User, error)
}

// Options tunes an App. The zero value is usable.
type Options struct {
	ResultsPerPage int
	Metrics        *metrics.Collector
}

type subscription struct {
	id uuid.UUID
	fn func(Event)
}

// App holds the user list state and turns user actions (refresh, fetch more,
// select, delete) into store mutations and events.
//
// All state changes happen under mu; the fetcher is called without holding
// it. Each change queues its event while still holding mu, so the queue is
// in snapshot order. Subscribers run after mu is released, one event at a
// time, on the goroutine that drains the queue. That is normally the caller
// of the action; if another goroutine is already delivering, the action
// returns and its event follows the earlier ones.
type App struct {
	fetcher        UserFetcher
	store          users.Store
	logger         zerolog.Logger
	metrics        *metrics.Collector
	resultsPerPage int

	mu         sync.Mutex
	page       int
	generation uint64
	inflight   int
	pending    []string
	mode       Mode
	tab        users.Gender
	layout     Layout
	seq        uint64

	subsMu sync.RWMutex
	subs   []subscription

	queueMu  sync.Mutex
	queue    []Event
	draining bool
}

// New creates a new App over an empty or pre-populated store.
func New(fetcher UserFetcher, store users.Store, logger zerolog.Logger, opts Options) *App {
	if opts.ResultsPerPage <= 0 {
		opts.ResultsPerPage = DefaultResultsPerPage
	}
	return &App{
		fetcher:        fetcher,
		store:          store,
		logger:         logger.With().Str("component", "userlist").Logger(),
		metrics:        opts.Metrics,
		resultsPerPage: opts.ResultsPerPage,
		page:           1,
		mode:           ModeBrowse,
		tab:            users.GenderMale,
		layout:         LayoutGrid,
	}
}

// Subscribe registers fn for every future event and returns a handle for Unsubscribe.
func (a *App) Subscribe(fn func(Event)) uuid.UUID {
	id := uuid.New()
	a.subsMu.Lock()
	a.subs = append(a.subs, subscription{id: id, fn: fn})
	a.subsMu.Unlock()
	return id
}

// Unsubscribe removes a subscriber. It reports whether the id was known.
func (a *App) Unsubscribe(id uuid.UUID) bool {
	a.subsMu.Lock()
	defer a.subsMu.Unlock()
	for i, s := range a.subs {
		if s.id == id {
			a.subs = append(a.subs[:i], a.subs[i+1:]...)
			return true
		}
	}
	return false
}

// enqueueLocked stamps the next sequence number and queues the event.
// Callers hold mu and call dispatch once they have released it.
func (a *App) enqueueLocked(typ EventType, st State, err error) {
	a.seq++
	ev := Event{ID: uuid.New(), Seq: a.seq, Type: typ, State: st, Err: err}
	a.queueMu.Lock()
	a.queue = append(a.queue, ev)
	a.queueMu.Unlock()
}

// dispatch delivers queued events in order. Only one goroutine drains at a
// time; the others leave their events to it. A subscriber that calls back
// into the App has its event delivered after the current one.
func (a *App) dispatch() {
	a.queueMu.Lock()
	if a.draining {
		a.queueMu.Unlock()
		return
	}
	a.draining = true
	for len(a.queue) > 0 {
		ev := a.queue[0]
		a.queue = a.queue[1:]
		a.queueMu.Unlock()
		a.deliver(ev)
		a.queueMu.Lock()
	}
	a.draining = false
	a.queueMu.Unlock()
}

func (a *App) deliver(ev Event) {
	a.subsMu.RLock()
	subs := make([]subscription, len(a.subs))
	copy(subs, a.subs)
	a.subsMu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

// State returns the current snapshot.
func (a *App) State(ctx context.Context) (State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked(ctx)
}

// Detail returns a single user, typically to show its large picture.
func (a *App) Detail(ctx context.Context, id string) (users.User, error) {
	return a.store.Get(ctx, id)
}

// Refresh resets the cursor to page 1, empties the list and loads the first
// page. Results of fetches started before the refresh are discarded when
// they arrive.
func (a *App) Refresh(ctx context.Context) error {
	a.mu.Lock()
	a.page = 1
	a.generation++
	gen := a.generation
	if err := a.store.Clear(ctx); err != nil {
		a.mu.Unlock()
		return fmt.Errorf("failed to clear user list: %w", err)
	}
	if err := a.commitAndPublish(ctx); err != nil {
		return err
	}

	a.logger.Info().Msg("Refreshing user list")
	return a.fetch(ctx, "refresh", 1, gen)
}

// FetchMore advances the cursor by one page and appends the users that are
// not already listed. The cursor stays advanced if the fetch fails.
func (a *App) FetchMore(ctx context.Context) error {
	a.mu.Lock()
	a.page++
	page := a.page
	gen := a.generation
	a.mu.Unlock()

	return a.fetch(ctx, "fetch_more", page, gen)
}

func (a *App) fetch(ctx context.Context, kind string, page int, gen uint64) error {
	logger := a.logger.With().Str("kind", kind).Int("page", page).Logger()

	a.setLoading(ctx, 1)
	start := time.Now()
	list, err := a.fetcher.GetUsers(ctx, page, a.resultsPerPage)
	elapsed := time.Since(start)
	a.setLoading(ctx, -1)

	if err != nil {
		a.metrics.ObserveFetch(kind, metrics.OutcomeFailed, elapsed)
		return a.fail(ctx, logger, fmt.Errorf("%w: page %d: %w", ErrFetchFailed, page, err))
	}

	a.mu.Lock()
	if gen != a.generation {
		a.mu.Unlock()
		a.metrics.ObserveFetch(kind, metrics.OutcomeStale, elapsed)
		logger.Debug().Msg("Discarding page fetched before a refresh")
		return nil
	}
	added, err := a.store.Append(ctx, list)
	if err != nil {
		a.mu.Unlock()
		a.metrics.ObserveFetch(kind, metrics.OutcomeFailed, elapsed)
		return a.fail(ctx, logger, fmt.Errorf("%w: failed to store page %d: %w", ErrFetchFailed, page, err))
	}
	st, err := a.commitLocked(ctx)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.enqueueLocked(EventStateChanged, st, nil)
	a.mu.Unlock()
	a.dispatch()

	a.metrics.ObserveFetch(kind, metrics.OutcomeOK, elapsed)
	logger.Info().Int("received", len(list)).Int("added", added).Int("total", len(st.Users)).Msg("Page merged into user list")
	return nil
}

// fail publishes a fetch failure. The list is left as it was.
func (a *App) fail(ctx context.Context, logger zerolog.Logger, err error) error {
	logger.Error().Err(err).Msg("Fetching users failed")
	a.mu.Lock()
	st, snapErr := a.snapshotLocked(ctx)
	if snapErr != nil {
		logger.Error().Err(snapErr).Msg("Failed to snapshot state after fetch failure")
	}
	a.enqueueLocked(EventFetchFailed, st, err)
	a.mu.Unlock()
	a.dispatch()
	return err
}

func (a *App) setLoading(ctx context.Context, delta int) {
	a.mu.Lock()
	a.inflight += delta
	st, err := a.snapshotLocked(ctx)
	if err != nil {
		a.mu.Unlock()
		a.logger.Error().Err(err).Msg("Failed to snapshot state for loading event")
		return
	}
	a.enqueueLocked(EventLoading, st, nil)
	a.mu.Unlock()
	a.dispatch()
}

// ToggleSelect adds id to the pending-delete set, or removes it if it is
// already there. It is only allowed in delete mode; in browse mode it fails
// with ErrInvalidMode. Unknown ids are rejected with users.ErrNotFound.
func (a *App) ToggleSelect(ctx context.Context, id string) error {
	a.mu.Lock()
	if a.mode != ModeDelete {
		a.mu.Unlock()
		return fmt.Errorf("%w: selecting users requires %s mode", ErrInvalidMode, ModeDelete)
	}
	if _, err := a.store.Get(ctx, id); err != nil {
		a.mu.Unlock()
		return err
	}
	removed := false
	for i, p := range a.pending {
		if p == id {
			a.pending = append(a.pending[:i], a.pending[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		a.pending = append(a.pending, id)
	}
	return a.commitAndPublish(ctx)
}

// ConfirmDelete removes every pending user from the list and empties the
// pending set. It returns the number of users removed.
func (a *App) ConfirmDelete(ctx context.Context) (int, error) {
	a.mu.Lock()
	ids := a.pending
	removed, err := a.store.Remove(ctx, ids)
	if err != nil {
		a.mu.Unlock()
		return 0, fmt.Errorf("failed to delete users: %w", err)
	}
	a.pending = nil
	a.metrics.AddDeleted(removed)
	a.logger.Info().Int("requested", len(ids)).Int("removed", removed).Msg("Deleted selected users")
	return removed, a.commitAndPublish(ctx)
}

// Cancel empties the pending set without touching the list.
func (a *App) Cancel(ctx context.Context) error {
	a.mu.Lock()
	a.pending = nil
	return a.commitAndPublish(ctx)
}

// SetMode switches between browse and delete mode. Leaving delete mode
// cancels the pending selection.
func (a *App) SetMode(ctx context.Context, mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}
	a.mu.Lock()
	if a.mode == ModeDelete && mode != ModeDelete {
		a.pending = nil
	}
	a.mode = mode
	return a.commitAndPublish(ctx)
}

// SelectTab picks which gender projection renderers show.
func (a *App) SelectTab(ctx context.Context, tab users.Gender) error {
	if _, err := ParseTab(string(tab)); err != nil {
		return err
	}
	a.mu.Lock()
	a.tab = tab
	return a.commitAndPublish(ctx)
}

// SelectLayout picks grid or list presentation.
func (a *App) SelectLayout(ctx context.Context, layout Layout) error {
	if _, err := ParseLayout(string(layout)); err != nil {
		return err
	}
	a.mu.Lock()
	a.layout = layout
	return a.commitAndPublish(ctx)
}

// commitAndPublish must be entered with mu held; it releases it.
func (a *App) commitAndPublish(ctx context.Context) error {
	st, err := a.commitLocked(ctx)
	if err != nil {
		a.mu.Unlock()
		return err
	}
	a.enqueueLocked(EventStateChanged, st, nil)
	a.mu.Unlock()
	a.dispatch()
	return nil
}

// commitLocked snapshots the state after a mutation and updates the store gauge.
func (a *App) commitLocked(ctx context.Context) (State, error) {
	st, err := a.snapshotLocked(ctx)
	if err != nil {
		return State{}, err
	}
	a.metrics.SetStoreSize(len(st.Users))
	return st, nil
}

// snapshotLocked drops pending ids that are no longer listed before copying
// the state out.
func (a *App) snapshotLocked(ctx context.Context) (State, error) {
	list, err := a.store.List(ctx)
	if err != nil {
		return State{}, fmt.Errorf("failed to list users: %w", err)
	}

	present := make(map[string]struct{}, len(list))
	for _, u := range list {
		present[u.ID] = struct{}{}
	}
	kept := a.pending[:0]
	for _, id := range a.pending {
		if _, ok := present[id]; ok {
			kept = append(kept, id)
		}
	}
	a.pending = kept

	pending := make([]string, len(a.pending))
	copy(pending, a.pending)
	return State{
		Page:    a.page,
		Loading: a.inflight > 0,
		Mode:    a.mode,
		Tab:     a.tab,
		Layout:  a.layout,
		Users:   list,
		Male:    users.FilterByGender(list, users.GenderMale),
		Female:  users.FilterByGender(list, users.GenderFemale),
		Pending: pending,
	}, nil
}
