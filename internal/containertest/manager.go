package containertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/schmitthub/dockercloud/internal/agent"
	"github.com/schmitthub/dockercloud/internal/clock"
	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/internal/docker"
	"github.com/schmitthub/dockercloud/internal/instance"
	"github.com/schmitthub/dockercloud/internal/logger"
	"github.com/schmitthub/dockercloud/internal/resolver"
)

// Options configures a Manager. Zero durations and worker counts fall back
// to the config package defaults.
type Options struct {
	Resolver      resolver.ImageResolver
	Factory       docker.FacadeFactory
	AgentDetected agent.Predicate
	Clock         clock.Clock

	PollRate         time.Duration
	IdleTime         time.Duration
	CleanupRate      time.Duration
	AgentWaitTimeout time.Duration
	CallTimeout      time.Duration
	Workers          int

	// DefaultServerURL is published to containers whose cloud config has none.
	DefaultServerURL string
}

// OptionsFromSettings copies the scheduler settings out of s. The
// collaborators are left for the caller to set.
func OptionsFromSettings(s *config.Settings) Options {
	return Options{
		PollRate:         s.Test.PollRate,
		IdleTime:         s.Test.IdleTime,
		CleanupRate:      s.Test.CleanupRate,
		AgentWaitTimeout: s.Test.AgentWaitTimeout,
		CallTimeout:      s.Test.CallTimeout,
		Workers:          s.Test.Workers,
		DefaultServerURL: s.ServerURL,
	}
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.PollRate <= 0 {
		o.PollRate = config.DefaultPollRate
	}
	if o.IdleTime <= 0 {
		o.IdleTime = config.DefaultIdleTime
	}
	if o.CleanupRate <= 0 {
		o.CleanupRate = config.DefaultCleanupRate
	}
	if o.AgentWaitTimeout <= 0 {
		o.AgentWaitTimeout = config.DefaultAgentWaitTimeout
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = config.DefaultCallTimeout
	}
	if o.Workers <= 0 {
		o.Workers = config.DefaultWorkers
	}
	return o
}

// Manager owns container tests and schedules their phases.
type Manager struct {
	opts   Options
	pool   *ants.Pool
	ctx    context.Context
	cancel context.CancelFunc

	idleTime    atomic.Int64
	agentWait   atomic.Int64
	callTimeout atomic.Int64

	mu       sync.Mutex
	tests    map[uuid.UUID]*containerTest
	disposed bool

	// inflight counts pool invocations and reaper disposals.
	inflight    sync.WaitGroup
	loopDone    chan struct{}
	disposeOnce sync.Once
	disposeErr  error
}

// NewManager validates opts and starts the scheduler.
func NewManager(opts Options) (*Manager, error) {
	if opts.Resolver == nil {
		return nil, errors.New("containertest: an image resolver is required")
	}
	if opts.Factory == nil {
		return nil, errors.New("containertest: a facade factory is required")
	}
	if opts.AgentDetected == nil {
		return nil, errors.New("containertest: an agent predicate is required")
	}
	opts = opts.withDefaults()

	pool, err := ants.NewPool(opts.Workers,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(p any) {
			logger.Error().Interface("panic", p).Msg("container test phase panicked")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		opts:     opts,
		pool:     pool,
		ctx:      ctx,
		cancel:   cancel,
		tests:    make(map[uuid.UUID]*containerTest),
		loopDone: make(chan struct{}),
	}
	m.idleTime.Store(int64(opts.IdleTime))
	m.agentWait.Store(int64(opts.AgentWaitTimeout))
	m.callTimeout.Store(int64(opts.CallTimeout))

	go m.loop(opts.Clock.NewTicker(opts.PollRate), opts.Clock.NewTicker(opts.CleanupRate))
	return m, nil
}

func (m *Manager) loop(poll, cleanup clock.Ticker) {
	defer close(m.loopDone)
	defer poll.Stop()
	defer cleanup.Stop()
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-poll.C():
			m.poll()
		case <-cleanup.C():
			m.reap()
		}
	}
}

func (m *Manager) snapshot() []*containerTest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*containerTest, 0, len(m.tests))
	for _, t := range m.tests {
		out = append(out, t)
	}
	return out
}

// poll submits the current task of every pending test. A test whose
// previous invocation is still running is skipped until the next tick.
func (m *Manager) poll() {
	for _, t := range m.snapshot() {
		task, ok := t.pollable()
		if !ok || !t.run.TryLock() {
			continue
		}
		m.inflight.Add(1)
		err := m.pool.Submit(func() {
			defer m.inflight.Done()
			defer t.run.Unlock()
			m.runTask(t, task)
		})
		if err != nil {
			t.run.Unlock()
			m.inflight.Done()
			if errors.Is(err, ants.ErrPoolOverload) {
				logger.Debug().Str("test", t.id.String()).Msg("worker pool busy, retrying next tick")
				continue
			}
			logger.Warn().Err(err).Str("test", t.id.String()).Msg("submitting container test phase")
		}
	}
}

// runTask executes one invocation of task. t.run is held.
func (m *Manager) runTask(t *containerTest, task Task) {
	if cur, ok := t.pollable(); !ok || cur != task || m.ctx.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(m.ctx, time.Duration(m.callTimeout.Load()))
	status, err := task.Work(ctx)
	cancel()
	if m.ctx.Err() != nil {
		return
	}
	if err == nil && status != StatusPending && status != StatusSuccess {
		t.env.log.Error().Str("status", status.String()).Msg("phase returned failure without an error")
		err = &TaskError{Phase: task.Phase(), Reason: "Phase failed"}
	}

	if err != nil {
		var te *TaskError
		if !errors.As(err, &te) {
			te = &TaskError{Phase: task.Phase(), Reason: "Unexpected error", Cause: err}
		}
		if !t.fail(task, te) {
			return
		}
		t.env.log.Warn().Err(te.Cause).Str("phase", te.Phase.String()).Msg(te.Reason)
		if nerr := t.env.inst.NotifyFailure(te.Reason, te.Cause); nerr != nil {
			t.env.log.Warn().Err(nerr).Msg("recording instance failure")
		}
		return
	}

	if status == StatusSuccess {
		t.succeed(task)
	}
}

// reap disposes tests that are settled and have been idle past IdleTime.
func (m *Manager) reap() {
	idle := time.Duration(m.idleTime.Load())
	now := m.opts.Clock.Now()
	for _, t := range m.snapshot() {
		since, ok := t.idleSince()
		if !ok || now.Sub(since) <= idle {
			continue
		}
		if !m.remove(t.id) {
			continue
		}
		t.env.log.Info().Dur("idle", now.Sub(since)).Msg("reaping idle container test")
		m.inflight.Add(1)
		go func() {
			defer m.inflight.Done()
			if err := m.disposeTest(t); err != nil {
				t.env.log.Warn().Err(err).Msg("reaping container test")
			}
		}()
	}
}

func (m *Manager) lookup(id uuid.UUID) (*containerTest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.disposed {
		return nil, ErrDisposed
	}
	t, ok := m.tests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTestNotFound, id)
	}
	return t, nil
}

func (m *Manager) remove(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tests[id]; !ok {
		return false
	}
	delete(m.tests, id)
	return true
}

// CreateTest registers a new test for img on the engine described by cloud
// and schedules its CREATE phase. Errors only report misuse; engine and
// image problems surface as a FAILURE status.
func (m *Manager) CreateTest(_ context.Context, cloud config.CloudConfig, img config.ImageConfig) (uuid.UUID, error) {
	if err := cloud.Validate(); err != nil {
		return uuid.Nil, fmt.Errorf("invalid cloud config: %w", err)
	}
	if err := img.Validate(); err != nil {
		return uuid.Nil, fmt.Errorf("invalid image config: %w", err)
	}
	m.mu.Lock()
	disposed := m.disposed
	m.mu.Unlock()
	if disposed {
		return uuid.Nil, ErrDisposed
	}

	img = img.Clone()
	inst, err := instance.New(img, instance.WithNow(m.opts.Clock.Now))
	if err != nil {
		return uuid.Nil, err
	}
	id := uuid.New()
	env := &taskEnv{
		testID:           id,
		cloud:            cloud,
		image:            img,
		inst:             inst,
		factory:          m.opts.Factory,
		resolver:         m.opts.Resolver,
		detected:         m.opts.AgentDetected,
		clock:            m.opts.Clock,
		log:              logger.ForTest(id.String()).With().Str("instance", inst.InstanceID()).Logger(),
		defaultServerURL: m.opts.DefaultServerURL,
		agentWait:        func() time.Duration { return time.Duration(m.agentWait.Load()) },
	}
	t := newContainerTest(id, env)

	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return uuid.Nil, ErrDisposed
	}
	m.tests[id] = t
	m.mu.Unlock()

	env.log.Info().Str("image", img.Image).Str("profile", img.Profile).Msg("container test created")
	return id, nil
}

// SetListener binds l to the test. The last status message is delivered to
// l right away and a previously bound listener is disposed.
func (m *Manager) SetListener(id uuid.UUID, l Listener) error {
	if l == nil {
		return ErrNilListener
	}
	t, err := m.lookup(id)
	if err != nil {
		return err
	}
	return t.setListener(l)
}

// StartTestContainer schedules the START phase of a test whose CREATE phase
// succeeded.
func (m *Manager) StartTestContainer(id uuid.UUID) error {
	t, err := m.lookup(id)
	if err != nil {
		return err
	}
	if err := t.start(); err != nil {
		return fmt.Errorf("starting test %s: %w", id, err)
	}
	return nil
}

// RetrieveStatus returns the last status message of the test.
func (m *Manager) RetrieveStatus(id uuid.UUID) (StatusMsg, bool) {
	t, err := m.lookup(id)
	if err != nil {
		return StatusMsg{}, false
	}
	return t.snapshot(), true
}

// Instance returns the instance record owned by the test.
func (m *Manager) Instance(id uuid.UUID) (*instance.Instance, error) {
	t, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return t.env.inst, nil
}

// DisposeTest removes the test's container, closes its engine client and
// disposes its listener. It waits for an in-flight phase to finish first.
func (m *Manager) DisposeTest(id uuid.UUID) error {
	t, err := m.lookup(id)
	if err != nil {
		return err
	}
	if !m.remove(id) {
		return fmt.Errorf("%w: %s", ErrTestNotFound, id)
	}
	return m.disposeTest(t)
}

func (m *Manager) disposeTest(t *containerTest) error {
	t.run.Lock()
	defer t.run.Unlock()

	containerID, ok := t.markDisposed()
	if !ok {
		return nil
	}
	env := t.env
	if env.facade == nil {
		// Never connected; nothing was created on the engine.
		env.setStatus(instance.StatusStopped)
		t.closeListener()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(m.callTimeout.Load()))
	defer cancel()

	ids := make([]string, 0, 1)
	if containerID != "" {
		ids = append(ids, containerID)
	}
	leftovers, err := env.facade.ListActiveAgentContainers(ctx, docker.TestFilter(t.id.String()))
	if err != nil {
		env.log.Warn().Err(err).Msg("listing test containers for cleanup")
	}
	for _, c := range leftovers {
		if c.ID != containerID {
			ids = append(ids, c.ID)
		}
	}

	var errs []error
	for _, cid := range ids {
		if err := env.facade.RemoveContainer(ctx, cid); err != nil {
			if docker.IsNotFound(err) {
				env.log.Debug().Str("container", logger.ShortID(cid)).Msg("container already removed")
				continue
			}
			errs = append(errs, fmt.Errorf("removing container %s: %w", logger.ShortID(cid), err))
			continue
		}
		env.log.Debug().Str("container", logger.ShortID(cid)).Msg("container removed")
	}

	env.setStatus(instance.StatusStopped)
	if err := env.facade.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing engine client: %w", err))
	}
	t.closeListener()

	env.log.Info().Msg("container test disposed")
	return errors.Join(errs...)
}

// Reconfigure applies changed settings. Idle time, agent wait timeout and
// call timeout take effect on the next tick; poll and cleanup rates are
// fixed for the life of the manager.
func (m *Manager) Reconfigure(cfg config.TestConfig) {
	if cfg.IdleTime > 0 {
		m.idleTime.Store(int64(cfg.IdleTime))
	}
	if cfg.AgentWaitTimeout > 0 {
		m.agentWait.Store(int64(cfg.AgentWaitTimeout))
	}
	if cfg.CallTimeout > 0 {
		m.callTimeout.Store(int64(cfg.CallTimeout))
	}
	if (cfg.PollRate > 0 && cfg.PollRate != m.opts.PollRate) || (cfg.CleanupRate > 0 && cfg.CleanupRate != m.opts.CleanupRate) {
		logger.Warn().
			Dur("poll_rate", cfg.PollRate).
			Dur("cleanup_rate", cfg.CleanupRate).
			Msg("poll and cleanup rate changes apply after restart")
	}
	logger.Debug().Msg("container test settings reloaded")
}

// Dispose stops the scheduler, disposes every test and releases the worker
// pool. Calling it again returns the first result.
func (m *Manager) Dispose() error {
	m.disposeOnce.Do(func() {
		m.mu.Lock()
		m.disposed = true
		tests := make([]*containerTest, 0, len(m.tests))
		for _, t := range m.tests {
			tests = append(tests, t)
		}
		m.tests = make(map[uuid.UUID]*containerTest)
		m.mu.Unlock()

		m.cancel()
		<-m.loopDone

		var (
			g    errgroup.Group
			mu   sync.Mutex
			errs []error
		)
		g.SetLimit(m.opts.Workers)
		for _, t := range tests {
			g.Go(func() error {
				err := m.disposeTest(t)
				t.queue.wait()
				if err != nil {
					mu.Lock()
					errs = append(errs, fmt.Errorf("test %s: %w", t.id, err))
					mu.Unlock()
				}
				return err
			})
		}
		_ = g.Wait()

		m.inflight.Wait()
		m.pool.Release()
		m.disposeErr = errors.Join(errs...)
	})
	return m.disposeErr
}
