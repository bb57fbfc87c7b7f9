package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gridpoint-eng/siteplan/internal/earthwork"
	"github.com/gridpoint-eng/siteplan/internal/exclusion"
	"github.com/gridpoint-eng/siteplan/internal/monitoring"
	"github.com/gridpoint-eng/siteplan/internal/placement"
	"github.com/gridpoint-eng/siteplan/internal/roadnet"
	"github.com/gridpoint-eng/siteplan/internal/terrain"
	"github.com/gridpoint-eng/siteplan/internal/timeutil"
)

// Manager runs planning jobs asynchronously. One goroutine per job; all
// bookkeeping behind a single mutex. Zero value is not usable, call
// NewManager.
type Manager struct {
	mu      sync.Mutex
	jobs    map[string]*job
	order   []string
	timeout time.Duration
	clock   timeutil.Clock
	wg      sync.WaitGroup
}

type job struct {
	view   JobView
	req    Request
	cancel context.CancelFunc
	subs   []chan JobView
}

// NewManager returns a manager. A positive timeout bounds each job's run
// time; zero means no limit.
func NewManager(timeout time.Duration) *Manager {
	return NewManagerWithClock(timeout, timeutil.RealClock{})
}

// NewManagerWithClock is NewManager with an injected clock, for tests that
// assert on job timestamps.
func NewManagerWithClock(timeout time.Duration, clock timeutil.Clock) *Manager {
	return &Manager{jobs: make(map[string]*job), timeout: timeout, clock: clock}
}

// Submit registers the request and starts it in the background, returning
// the job ID immediately.
func (m *Manager) Submit(req Request) string {
	now := m.clock.Now()
	j := &job{
		req: req,
		view: JobView{
			ID:          uuid.NewString(),
			Status:      StatusPending,
			CreatedAt:   now,
			Transitions: []Transition{{To: StatusPending, At: now}},
		},
	}
	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel

	m.mu.Lock()
	m.jobs[j.view.ID] = j
	m.order = append(m.order, j.view.ID)
	m.mu.Unlock()

	monitoring.Logf("[Pipeline] job %s submitted", j.view.ID)
	m.wg.Add(1)
	go m.run(ctx, j)
	return j.view.ID
}

// Get returns a snapshot of the job.
func (m *Manager) Get(id string) (JobView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return JobView{}, false
	}
	return snapshotLocked(j), true
}

// List returns snapshots of all jobs in submission order.
func (m *Manager) List() []JobView {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]JobView, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, snapshotLocked(m.jobs[id]))
	}
	return out
}

// Cancel requests cancellation. Pending jobs terminate immediately; running
// jobs stop at the next stage boundary or in-stage check. Returns false for
// unknown or already-terminal jobs.
func (m *Manager) Cancel(id string) bool {
	m.mu.Lock()
	j, ok := m.jobs[id]
	if !ok || j.view.Status.Terminal() {
		m.mu.Unlock()
		return false
	}
	if j.view.Status == StatusPending {
		m.transitionLocked(j, StatusCancelled)
	}
	cancel := j.cancel
	m.mu.Unlock()
	cancel()
	return true
}

// Watch returns a channel of job snapshots, one per update, plus the current
// snapshot sent immediately. The channel closes once the job is terminal.
// The returned stop function releases the subscription early.
func (m *Manager) Watch(id string) (<-chan JobView, func(), bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, nil, false
	}
	ch := make(chan JobView, 16)
	ch <- snapshotLocked(j)
	if j.view.Status.Terminal() {
		close(ch)
		return ch, func() {}, true
	}
	j.subs = append(j.subs, ch)
	stop := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range j.subs {
			if s == ch {
				j.subs = append(j.subs[:i], j.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return ch, stop, true
}

// Wait blocks until the job reaches a terminal status or ctx is done.
func (m *Manager) Wait(ctx context.Context, id string) (JobView, error) {
	ch, stop, ok := m.Watch(id)
	if !ok {
		return JobView{}, fmt.Errorf("unknown job %s", id)
	}
	defer stop()
	last, _ := m.Get(id)
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case v, open := <-ch:
			if !open {
				// The final update can be dropped for a slow receiver;
				// re-fetch the terminal snapshot.
				if cur, ok := m.Get(id); ok {
					return cur, nil
				}
				return last, nil
			}
			last = v
			if v.Status.Terminal() {
				return v, nil
			}
		}
	}
}

// Shutdown waits for all running jobs to finish or ctx to expire. It does
// not cancel them.
func (m *Manager) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) run(ctx context.Context, j *job) {
	defer m.wg.Done()
	defer j.cancel()
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	m.mu.Lock()
	if j.view.Status.Terminal() { // cancelled before it started
		m.mu.Unlock()
		return
	}
	j.view.StartedAt = m.clock.Now()
	m.transitionLocked(j, StatusRunning)
	m.mu.Unlock()

	res, err := m.execute(ctx, j)

	m.mu.Lock()
	defer m.mu.Unlock()
	j.view.FinishedAt = m.clock.Now()
	switch {
	case err == nil:
		j.view.Result = res
		j.view.ProgressPct = 100
		m.transitionLocked(j, StatusCompleted)
	case errors.Is(err, context.Canceled):
		m.transitionLocked(j, StatusCancelled)
	case errors.Is(err, context.DeadlineExceeded):
		j.view.Error = fmt.Sprintf("timed out after %s", m.timeout)
		m.transitionLocked(j, StatusFailed)
	default:
		j.view.Error = err.Error()
		m.transitionLocked(j, StatusFailed)
	}
}

// execute runs the stages in order, bumping stage and progress between them.
func (m *Manager) execute(ctx context.Context, j *job) (*Result, error) {
	req := j.req
	res := &Result{}

	m.setStage(j, StageTerrain, 5)
	model, err := terrain.Analyze(req.Boundary, req.Source, req.AnalyzeOpts)
	if err != nil {
		return nil, fmt.Errorf("terrain analysis: %w", err)
	}
	res.Terrain = model
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.setStage(j, StageExclusion, 25)
	res.Zones = exclusion.Build(req.Zones)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.setStage(j, StagePlacement, 35)
	placed, err := placement.Place(ctx, req.Boundary, model, res.Zones,
		req.Asset, req.Objective, req.PlacementOpts)
	if err != nil {
		return nil, fmt.Errorf("asset placement: %w", err)
	}
	res.Placement = placed

	m.setStage(j, StageRoads, 65)
	terminals := make([]roadnet.Terminal, 0, len(placed.Placed))
	for _, p := range placed.Placed {
		terminals = append(terminals, roadnet.Terminal{
			ID:  fmt.Sprintf("asset-%d", p.ID),
			Pos: p.Center,
		})
	}
	net, err := roadnet.Build(ctx, model, res.Zones,
		roadnet.Terminal{ID: "entry", Pos: req.Entry}, terminals, req.Road)
	if err != nil {
		return nil, fmt.Errorf("road network: %w", err)
	}
	res.Roads = net

	m.setStage(j, StageEarthwork, 85)
	est, err := earthwork.Run(model, placed.Placed, net, req.Earthwork)
	if err != nil {
		return nil, fmt.Errorf("earthwork: %w", err)
	}
	res.Earthwork = est

	m.setProgress(j, 95)
	return res, nil
}

// setStage records the stage and raises progress, never lowering it.
func (m *Manager) setStage(j *job, s Stage, pct float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j.view.Stage = s
	if pct > j.view.ProgressPct {
		j.view.ProgressPct = pct
	}
	m.notifyLocked(j)
}

func (m *Manager) setProgress(j *job, pct float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pct > j.view.ProgressPct {
		j.view.ProgressPct = pct
	}
	m.notifyLocked(j)
}

// transitionLocked appends to the status history and notifies watchers.
// Callers hold m.mu. Transitions out of a terminal status are dropped.
func (m *Manager) transitionLocked(j *job, to Status) {
	if j.view.Status.Terminal() {
		return
	}
	j.view.Transitions = append(j.view.Transitions, Transition{
		From: j.view.Status, To: to, At: m.clock.Now(),
	})
	j.view.Status = to
	monitoring.Logf("[Pipeline] job %s -> %s", j.view.ID, to)
	m.notifyLocked(j)
}

// notifyLocked fans the current snapshot out to watchers, dropping updates
// for slow receivers. Terminal snapshots close the subscriptions.
func (m *Manager) notifyLocked(j *job) {
	if len(j.subs) == 0 {
		return
	}
	v := snapshotLocked(j)
	for _, ch := range j.subs {
		select {
		case ch <- v:
		default:
		}
	}
	if v.Status.Terminal() {
		for _, ch := range j.subs {
			close(ch)
		}
		j.subs = nil
	}
}

func snapshotLocked(j *job) JobView {
	v := j.view
	v.Transitions = append([]Transition(nil), j.view.Transitions...)
	return v
}
