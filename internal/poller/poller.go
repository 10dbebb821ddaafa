// Package poller keeps a live local view of one session while it runs.
//
// A poller owns at most one polling loop at a time. Each loop fetches the
// session snapshot plus any activities newer than the latest known one,
// merges them append-only, and stops for good once the session reaches a
// terminal state. Superseded or stopped loops are fenced by a generation
// counter: a response that arrives after its loop was invalidated is
// discarded before it can touch shared state.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/therealashik/julesctl/internal/api"
	"github.com/therealashik/julesctl/internal/models"
)

// DefaultInterval is the fixed delay between poll cycles. Errors retry at
// the same cadence; there is no backoff.
const DefaultInterval = 2 * time.Second

// API is the slice of the Jules client the poller needs.
type API interface {
	GetSession(ctx context.Context, name string) (*models.Session, error)
	ListActivities(ctx context.Context, sessionName string, opts api.ListActivitiesOptions) ([]models.Activity, string, error)
	ListAllActivities(ctx context.Context, sessionName string) ([]models.Activity, error)
}

// Update describes the outcome of one poll cycle.
type Update struct {
	Session    *models.Session
	Appended   []models.Activity
	Processing bool
	Terminal   bool
}

// Hooks receive poll results. They are invoked from the polling goroutine,
// outside the poller's lock, so they may call Snapshot.
type Hooks struct {
	OnUpdate func(Update)
	OnError  func(error)
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval overrides the inter-cycle delay.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) { p.interval = d }
}

// WithHooks installs result callbacks.
func WithHooks(h Hooks) Option {
	return func(p *Poller) { p.hooks = h }
}

// Poller synchronizes one session's state. Zero value is not usable; call
// New.
type Poller struct {
	api      API
	interval time.Duration
	hooks    Hooks

	mu          sync.Mutex
	generation  uint64
	cancel      context.CancelFunc
	done        chan struct{}
	sessionName string
	session     *models.Session
	activities  []models.Activity
	known       map[string]struct{}
	processing  bool
	polling     bool
}

// New creates a poller over the given API.
func New(a API, opts ...Option) *Poller {
	p := &Poller{
		api:      a,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins polling sessionName with no prior history; the first cycle
// fetches the full activity list. Any previous loop is superseded.
func (p *Poller) Start(sessionName string) {
	p.StartWithHistory(sessionName, nil, nil)
}

// StartWithHistory begins polling with cached state (e.g. from the local
// store). The first cycle then only fetches activities newer than the last
// cached one.
func (p *Poller) StartWithHistory(sessionName string, session *models.Session, history []models.Activity) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.generation++
	gen := p.generation
	p.cancel = cancel
	p.done = done
	p.sessionName = sessionName
	p.session = session
	p.activities = append([]models.Activity(nil), history...)
	p.known = make(map[string]struct{}, len(history))
	for _, a := range history {
		p.known[a.Name] = struct{}{}
	}
	p.processing = session != nil && session.State.Processing()
	p.polling = true
	p.mu.Unlock()

	go p.loop(ctx, gen, done)
}

// Stop invalidates the current loop. In-flight responses are dropped on
// arrival; the request itself is not awaited.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.generation++
	p.polling = false
	p.mu.Unlock()
}

// Done returns a channel closed when the current loop exits (terminal state,
// Stop, or supersession). Returns a closed channel if nothing was started.
func (p *Poller) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return p.done
}

// Snapshot is an immutable copy of the poller's state.
type Snapshot struct {
	SessionName string
	Session     *models.Session
	Activities  []models.Activity
	Processing  bool
	Polling     bool
}

// Snapshot returns a copy of the current state, safe to read while polling
// continues.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		SessionName: p.sessionName,
		Session:     p.session,
		Activities:  append([]models.Activity(nil), p.activities...),
		Processing:  p.processing,
		Polling:     p.polling,
	}
}

func (p *Poller) loop(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)
	for {
		if p.cycle(ctx, gen) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.interval):
		}
	}
}

// cycle runs one fetch-merge-decide pass. It returns true when the loop
// should exit (terminal state reached or loop superseded).
func (p *Poller) cycle(ctx context.Context, gen uint64) bool {
	p.mu.Lock()
	if gen != p.generation || !p.polling {
		p.mu.Unlock()
		return true
	}
	name := p.sessionName
	latest := ""
	if n := len(p.activities); n > 0 {
		latest = p.activities[n-1].CreateTime
	}
	p.mu.Unlock()

	var batch []models.Activity
	var actErr error
	if latest == "" {
		batch, actErr = p.api.ListAllActivities(ctx, name)
	} else {
		batch, _, actErr = p.api.ListActivities(ctx, name, api.ListActivitiesOptions{
			PageSize:  100,
			NewerThan: latest,
		})
	}

	session, sessErr := p.api.GetSession(ctx, name)

	if ctx.Err() != nil {
		// Cancelled mid-flight; the generation check below would discard the
		// results anyway, but don't surface cancellation as a fetch error.
		return true
	}
	for _, err := range []error{actErr, sessErr} {
		if err != nil && !errors.Is(err, context.Canceled) && p.hooks.OnError != nil {
			p.hooks.OnError(err)
		}
	}

	p.mu.Lock()
	if gen != p.generation || !p.polling {
		// Superseded while the request was in flight: drop the response.
		p.mu.Unlock()
		return true
	}

	var appended []models.Activity
	if actErr == nil {
		appended = p.merge(batch)
	}

	terminal := false
	if sessErr == nil && session != nil {
		p.reconcileSession(session)
		p.processing = session.State.Processing()
		terminal = session.State.Terminal()
		if terminal {
			p.polling = false
			if p.cancel != nil {
				p.cancel()
				p.cancel = nil
			}
		}
	}

	update := Update{
		Session:    p.session,
		Appended:   appended,
		Processing: p.processing,
		Terminal:   terminal,
	}
	p.mu.Unlock()

	if p.hooks.OnUpdate != nil && (sessErr == nil || len(appended) > 0) {
		p.hooks.OnUpdate(update)
	}
	return terminal
}

// merge appends unseen activities in the order received. Known names are
// skipped, so redelivery is a no-op; the list is never re-sorted because the
// incremental fetch contract guarantees new items sort after existing ones.
// Must be called with p.mu held.
func (p *Poller) merge(batch []models.Activity) []models.Activity {
	var appended []models.Activity
	for _, a := range batch {
		if _, seen := p.known[a.Name]; seen {
			continue
		}
		p.known[a.Name] = struct{}{}
		p.activities = append(p.activities, a)
		appended = append(appended, a)
	}
	return appended
}

// reconcileSession replaces the cached session only when something
// downstream cares about changed; otherwise the previous pointer is kept so
// observers can short-circuit on identity. Must be called with p.mu held.
func (p *Poller) reconcileSession(fresh *models.Session) {
	if p.session != nil &&
		p.session.State == fresh.State &&
		len(p.session.Outputs) == len(fresh.Outputs) {
		return
	}
	p.session = fresh
}
