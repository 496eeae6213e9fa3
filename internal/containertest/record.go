package containertest

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schmitthub/dockercloud/internal/logger"
)

// containerTest is the manager's record of one test.
type containerTest struct {
	id  uuid.UUID
	env *taskEnv

	// run is held while a phase executes and while the test is disposed.
	run sync.Mutex

	mu             sync.Mutex
	task           Task
	phase          Phase
	status         Status
	msg            string
	containerID    string
	containerStart time.Time
	failure        error
	lastActive     time.Time
	listener       Listener
	last           StatusMsg
	disposed       bool

	queue deliveryQueue
}

var _ reporter = (*containerTest)(nil)

func newContainerTest(id uuid.UUID, env *taskEnv) *containerTest {
	t := &containerTest{id: id, env: env}
	env.report = t
	t.mu.Lock()
	t.task = newCreateTask(env)
	t.phase = PhaseCreate
	t.status = StatusPending
	t.msg = "Creating container"
	t.publishLocked()
	t.mu.Unlock()
	return t
}

// publishLocked records the current state as the last message and queues it
// for the listener. t.mu must be held.
func (t *containerTest) publishLocked() {
	t.lastActive = t.env.clock.Now()
	t.last = StatusMsg{
		TestID:             t.id,
		Phase:              t.phase,
		Status:             t.status,
		Msg:                t.msg,
		ContainerID:        t.containerID,
		ContainerStartTime: t.containerStart,
		Failure:            t.failure,
	}
	if t.listener != nil {
		t.queue.push(delivery{listener: t.listener, msg: t.last})
	}
	t.env.log.Debug().Str("phase", t.phase.String()).Str("status", t.status.String()).Msg(t.msg)
}

func (t *containerTest) progress(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed || t.msg == msg {
		return
	}
	t.msg = msg
	t.publishLocked()
}

func (t *containerTest) containerCreated(id string) {
	t.mu.Lock()
	t.containerID = id
	t.mu.Unlock()
}

func (t *containerTest) containerStarted(at time.Time) {
	t.mu.Lock()
	t.containerStart = at
	t.mu.Unlock()
}

// pollable returns the task to run on this tick, if any.
func (t *containerTest) pollable() (Task, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed || t.status != StatusPending || t.task == nil {
		return nil, false
	}
	return t.task, true
}

// succeed records SUCCESS for the task's phase and moves on to its successor.
func (t *containerTest) succeed(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed || t.task != task {
		return
	}
	t.status = StatusSuccess
	t.msg = successMessage(task.Phase())
	t.publishLocked()

	if next := task.Next(); next != nil {
		t.task = next
		t.phase = next.Phase()
		t.status = StatusPending
		t.msg = ""
		t.publishLocked()
	}
}

// fail records a terminal FAILURE.
func (t *containerTest) fail(task Task, te *TaskError) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed || t.task != task || t.status != StatusPending {
		return false
	}
	t.status = StatusFailure
	t.msg = te.Reason
	t.failure = te
	t.publishLocked()
	return true
}

// start installs the START task after a successful CREATE.
func (t *containerTest) start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch {
	case t.disposed:
		return ErrTestNotFound
	case t.status == StatusFailure:
		return ErrTestFailed
	case t.phase != PhaseCreate || t.status != StatusSuccess:
		return ErrInvalidPhase
	}
	t.task = newStartTask(t.env, t.containerID)
	t.phase = PhaseStart
	t.status = StatusPending
	t.msg = "Starting container"
	t.publishLocked()
	return nil
}

func (t *containerTest) snapshot() StatusMsg {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// setListener binds l, disposing the previous listener, and replays the
// last message to l.
func (t *containerTest) setListener(l Listener) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return ErrTestNotFound
	}
	if t.listener != nil {
		t.queue.push(delivery{listener: t.listener, dispose: true})
	}
	t.listener = l
	t.queue.push(delivery{listener: l, msg: t.last})
	return nil
}

// idleSince reports when the test last changed, and whether it may be reaped.
func (t *containerTest) idleSince() (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastActive, !t.disposed && t.status != StatusPending
}

// markDisposed flips the test to disposed and hands back its container id.
// It reports false when the test was already disposed.
func (t *containerTest) markDisposed() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.disposed {
		return "", false
	}
	t.disposed = true
	return t.containerID, true
}

// closeListener queues Dispose as the listener's last delivery.
func (t *containerTest) closeListener() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		t.queue.push(delivery{listener: t.listener, dispose: true})
		t.listener = nil
	}
}

type delivery struct {
	listener Listener
	msg      StatusMsg
	dispose  bool
}

func (d delivery) deliver() {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Str("test", d.msg.TestID.String()).Msg("listener panicked")
		}
	}()
	if d.dispose {
		d.listener.Dispose()
		return
	}
	d.listener.Notify(d.msg)
}

// deliveryQueue is a FIFO drained by at most one goroutine at a time, which
// exits when the queue is empty.
type deliveryQueue struct {
	mu      sync.Mutex
	pending []delivery
	running bool
	idle    *sync.Cond
}

func (q *deliveryQueue) push(d delivery) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, d)
	if q.running {
		return
	}
	q.running = true
	go q.drain()
}

func (q *deliveryQueue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			if q.idle != nil {
				q.idle.Broadcast()
			}
			q.mu.Unlock()
			return
		}
		d := q.pending[0]
		q.pending[0] = delivery{}
		q.pending = q.pending[1:]
		q.mu.Unlock()

		d.deliver()
	}
}

// wait blocks until every queued delivery has been made.
func (q *deliveryQueue) wait() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.idle == nil {
		q.idle = sync.NewCond(&q.mu)
	}
	for q.running {
		q.idle.Wait()
	}
}
