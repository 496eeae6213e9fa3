package containertest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/schmitthub/dockercloud/internal/agent"
	"github.com/schmitthub/dockercloud/internal/clock"
	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/internal/docker"
	"github.com/schmitthub/dockercloud/internal/instance"
	"github.com/schmitthub/dockercloud/internal/resolver"
)

// Task is one phase of a test. Work is invoked once per poll tick while it
// returns StatusPending. A non-nil error means StatusFailure; tasks return a
// *TaskError for failures they classify themselves. Tasks keep their own
// progress so a pending re-invocation never repeats a side effect.
type Task interface {
	Phase() Phase
	Work(ctx context.Context) (Status, error)
	// Next returns the phase that runs after SUCCESS, or nil.
	Next() Task
}

// reporter receives progress from running tasks.
type reporter interface {
	progress(msg string)
	containerCreated(id string)
	containerStarted(at time.Time)
}

// taskEnv is what every task of one test shares.
type taskEnv struct {
	testID   uuid.UUID
	cloud    config.CloudConfig
	image    config.ImageConfig
	inst     *instance.Instance
	factory  docker.FacadeFactory
	// facade is nil until the first CREATE tick connects. Guarded by the
	// test's run mutex.
	facade   docker.ClientFacade
	resolver resolver.ImageResolver
	detected agent.Predicate
	clock    clock.Clock
	log      zerolog.Logger
	report   reporter

	defaultServerURL string
	agentWait        func() time.Duration
}

func (e *taskEnv) serverURL() string {
	if e.cloud.ServerURL != "" {
		return e.cloud.ServerURL
	}
	return e.defaultServerURL
}

// setStatus moves the instance record, ignoring a failure recorded elsewhere.
func (e *taskEnv) setStatus(s instance.Status) {
	if err := e.inst.SetStatus(s); err != nil && !errors.Is(err, instance.ErrFailed) {
		e.log.Warn().Err(err).Str("status", s.String()).Msg("updating instance status")
	}
}

// createTask connects to the engine, resolves the image, optionally pulls
// it, and creates the container. The pull gets its own tick.
type createTask struct {
	env    *taskEnv
	ref    string
	pulled bool
}

func newCreateTask(env *taskEnv) *createTask {
	return &createTask{env: env}
}

func (t *createTask) Phase() Phase { return PhaseCreate }

func (t *createTask) Next() Task { return nil }

func (t *createTask) Work(ctx context.Context) (Status, error) {
	env := t.env
	if env.facade == nil {
		facade, err := env.factory.CreateFacade(ctx, env.cloud.Engine)
		if err != nil {
			return failure(PhaseCreate, "Failed to connect to engine", err)
		}
		env.facade = facade
	}

	if t.ref == "" {
		ref, err := env.resolver.Resolve(ctx, env.image)
		if err != nil {
			return failure(PhaseCreate, "Failed to resolve image", err)
		}
		t.ref = ref
		env.log.Debug().Str("image", ref).Msg("image resolved")
	}

	if env.image.PullOnCreate && !t.pulled {
		env.report.progress("Pulling image")
		if err := env.facade.PullImage(ctx, t.ref, env.image.Credentials); err != nil {
			return failure(PhaseCreate, "Failed to pull image", err)
		}
		t.pulled = true
		return StatusPending, nil
	}

	req := docker.CreateRequest{
		Image:          t.ref,
		Profile:        env.image.Profile,
		Spec:           env.image.Spec,
		ServerURL:      env.serverURL(),
		InstanceID:     env.inst.InstanceID(),
		TestInstanceID: env.testID.String(),
	}
	if env.cloud.ClientID != uuid.Nil {
		req.ClientID = env.cloud.ClientID.String()
	}

	created, err := env.facade.CreateAgentContainer(ctx, req)
	if err != nil {
		return failure(PhaseCreate, "Failed to create container", err)
	}
	if err := env.inst.SetContainerID(created.ID); err != nil {
		return failure(PhaseCreate, "Engine returned no container id", err)
	}
	if created.Name != "" {
		_ = env.inst.SetContainerName(created.Name)
	}
	env.setStatus(instance.StatusScheduling)
	env.report.containerCreated(created.ID)
	env.log.Info().Str("container", created.Name).Str("image", t.ref).Msg("container created")
	return StatusSuccess, nil
}

// startTask starts the container and waits for its agent to connect.
type startTask struct {
	env         *taskEnv
	containerID string
	watch       *clock.Stopwatch
}

func newStartTask(env *taskEnv, containerID string) *startTask {
	return &startTask{env: env, containerID: containerID}
}

func (t *startTask) Phase() Phase { return PhaseStart }

func (t *startTask) Next() Task {
	return &verifyTask{env: t.env}
}

func (t *startTask) Work(ctx context.Context) (Status, error) {
	env := t.env
	if t.watch == nil {
		watch := clock.StartStopwatch(env.clock)
		if err := env.facade.StartAgentContainer(ctx, t.containerID); err != nil {
			return failure(PhaseStart, "Failed to start container", err)
		}
		t.watch = watch
		if err := env.inst.SetStartedTime(watch.Started()); err != nil {
			env.log.Warn().Err(err).Msg("recording container start time")
		}
		env.setStatus(instance.StatusStarting)
		env.report.containerStarted(watch.Started())
		env.report.progress("Waiting for agent to connect")
		return StatusPending, nil
	}

	if env.detected(env.testID) {
		return StatusSuccess, nil
	}

	containers, err := env.facade.ListActiveAgentContainers(ctx, docker.TestFilter(env.testID.String()))
	if err != nil {
		return failure(PhaseStart, "Failed to query container state", err)
	}

	switch len(containers) {
	case 0:
		return failure(PhaseStart, "Container was prematurely destroyed.", nil)
	case 1:
		c := containers[0]
		if !c.Running {
			return failure(PhaseStart, fmt.Sprintf("Container exited prematurely (%s)", c.State), nil)
		}
		if wait := env.agentWait(); t.watch.Elapsed() > wait {
			return failure(PhaseStart, fmt.Sprintf("Timeout: no agent connection after %d seconds.", int(wait.Seconds())), nil)
		}
		return StatusPending, nil
	default:
		ids := make([]string, len(containers))
		for i, c := range containers {
			ids[i] = c.ShortID()
		}
		env.log.Error().Strs("containers", ids).Msg("more than one container carries this test's label")
		return failure(PhaseStart, fmt.Sprintf("Found %d containers for one test, expected exactly one", len(containers)), nil)
	}
}

// verifyTask confirms in one tick that the agent is still connected and the
// container still runs, then marks the instance running.
type verifyTask struct {
	env *taskEnv
}

func (t *verifyTask) Phase() Phase { return PhaseVerify }

func (t *verifyTask) Next() Task { return nil }

func (t *verifyTask) Work(ctx context.Context) (Status, error) {
	env := t.env
	if !env.detected(env.testID) {
		return failure(PhaseVerify, "Agent disconnected", nil)
	}

	containers, err := env.facade.ListActiveAgentContainers(ctx, docker.TestFilter(env.testID.String()))
	if err != nil {
		return failure(PhaseVerify, "Failed to query container state", err)
	}
	if len(containers) != 1 {
		return failure(PhaseVerify, fmt.Sprintf("Expected one container for the test, found %d", len(containers)), nil)
	}
	c := containers[0]
	if !c.Running {
		return failure(PhaseVerify, fmt.Sprintf("Container exited prematurely (%s)", c.State), nil)
	}

	if err := env.inst.SetContainerInfo(&c); err != nil {
		return failure(PhaseVerify, "Recording container info", err)
	}
	env.setStatus(instance.StatusRunning)
	env.log.Info().Str("container", c.ShortID()).Msg("container verified")
	return StatusSuccess, nil
}
