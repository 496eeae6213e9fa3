package instance

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schmitthub/dockercloud/internal/agent"
	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/internal/docker"
)

func newTestInstance(t *testing.T) *Instance {
	t.Helper()
	inst, err := New(config.ImageConfig{Image: "alpine:3.20"})
	require.NoError(t, err)
	return inst
}

func TestNewSetsStartedTimeAndID(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	inst, err := New(config.ImageConfig{Image: "alpine"}, WithNow(func() time.Time { return fixed }))
	require.NoError(t, err)

	assert.Equal(t, fixed, inst.StartedTime())
	assert.NotEqual(t, uuid.Nil, inst.ID())
	assert.Equal(t, inst.ID().String(), inst.InstanceID())
	assert.Equal(t, StatusUnknown, inst.Status())
	assert.Equal(t, "alpine", inst.Image().ImageName())

	other := newTestInstance(t)
	assert.NotEqual(t, inst.ID(), other.ID())
}

func TestNewRejectsEmptyImage(t *testing.T) {
	_, err := New(config.ImageConfig{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestStartedTimeNeverZero(t *testing.T) {
	for i := 0; i < 100; i++ {
		assert.False(t, newTestInstance(t).StartedTime().IsZero())
	}
}

func TestSettersRejectInvalidInput(t *testing.T) {
	inst := newTestInstance(t)
	require.NoError(t, inst.SetContainerID("abc"))
	require.NoError(t, inst.SetContainerName("dockercloud-test"))
	require.NoError(t, inst.SetStatus(StatusStarting))

	tests := []struct {
		name string
		call func() error
	}{
		{name: "empty container id", call: func() error { return inst.SetContainerID("") }},
		{name: "blank container name", call: func() error { return inst.SetContainerName("  ") }},
		{name: "out of range status", call: func() error { return inst.SetStatus(Status(42)) }},
		{name: "error status without info", call: func() error { return inst.SetStatus(StatusError) }},
		{name: "nil container info", call: func() error { return inst.SetContainerInfo(nil) }},
		{name: "empty failure message", call: func() error { return inst.NotifyFailure("", nil) }},
		{name: "zero started time", call: func() error { return inst.SetStartedTime(time.Time{}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.call(), ErrInvalidArgument)
		})
	}

	assert.Equal(t, "abc", inst.ContainerID())
	assert.Equal(t, "dockercloud-test", inst.ContainerName())
	assert.Equal(t, StatusStarting, inst.Status())
	_, ok := inst.ErrorInfo()
	assert.False(t, ok)
}

func TestNameUnknownUntilAssigned(t *testing.T) {
	inst := newTestInstance(t)
	assert.Equal(t, UnknownName, inst.Name())
	require.NoError(t, inst.SetContainerName("dockercloud-agent"))
	assert.Equal(t, "dockercloud-agent", inst.Name())
}

func TestNotifyFailure(t *testing.T) {
	inst := newTestInstance(t)
	require.NoError(t, inst.SetStatus(StatusRunning))

	cause := errors.New("engine unreachable")
	require.NoError(t, inst.NotifyFailure("Failed to start", cause))

	assert.Equal(t, StatusError, inst.Status())
	info, ok := inst.ErrorInfo()
	require.True(t, ok)
	assert.Equal(t, "Failed to start", info.Message)
	assert.ErrorIs(t, info, cause)
	assert.Equal(t, "Failed to start: engine unreachable", info.Error())

	assert.ErrorIs(t, inst.SetStatus(StatusRunning), ErrFailed)
	assert.Equal(t, StatusError, inst.Status())
}

func TestNotifyFailureAtomicUnderConcurrency(t *testing.T) {
	inst := newTestInstance(t)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	inconsistent := make(chan Snapshot, 1)

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				s := inst.Snapshot()
				if (s.Status == StatusError) != (s.Error != nil) {
					select {
					case inconsistent <- s:
					default:
					}
					return
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = inst.SetStatus(StatusStarting)
			_ = inst.SetStatus(StatusRunning)
		}
	}()

	require.NoError(t, inst.NotifyFailure("boom", nil))

	time.Sleep(10 * time.Millisecond)
	close(stop)
	wg.Wait()

	select {
	case s := <-inconsistent:
		t.Fatalf("observed inconsistent snapshot: %+v", s)
	default:
	}

	s := inst.Snapshot()
	assert.Equal(t, StatusError, s.Status)
	require.NotNil(t, s.Error)
	assert.Equal(t, "boom", s.Error.Message)
}

func TestContainerInfoIsCopied(t *testing.T) {
	inst := newTestInstance(t)
	_, ok := inst.ContainerInfo()
	assert.False(t, ok)

	info := &docker.ContainerInfo{ID: "c1", State: "running", Running: true, Labels: map[string]string{"k": "v"}}
	require.NoError(t, inst.SetContainerInfo(info))
	info.Labels["k"] = "mutated"

	got, ok := inst.ContainerInfo()
	require.True(t, ok)
	assert.Equal(t, "v", got.Labels["k"])

	got.Labels["k"] = "mutated again"
	again, _ := inst.ContainerInfo()
	assert.Equal(t, "v", again.Labels["k"])
}

func TestContainsAgent(t *testing.T) {
	inst := newTestInstance(t)

	match := agent.Description{Name: "a", Env: map[string]string{config.EnvInstanceID: inst.InstanceID()}}
	other := agent.Description{Name: "b", Env: map[string]string{config.EnvInstanceID: "someone-else"}}

	assert.True(t, inst.ContainsAgent(match))
	assert.False(t, inst.ContainsAgent(other))
	assert.False(t, inst.ContainsAgent(agent.Description{Name: "c"}))
}

func TestUpdateStartedTime(t *testing.T) {
	now := time.Unix(100, 0)
	inst, err := New(config.ImageConfig{Image: "alpine"}, WithNow(func() time.Time { return now }))
	require.NoError(t, err)

	now = time.Unix(200, 0)
	inst.UpdateStartedTime()
	assert.Equal(t, time.Unix(200, 0), inst.StartedTime())

	require.NoError(t, inst.SetStartedTime(time.Unix(300, 0)))
	assert.Equal(t, time.Unix(300, 0), inst.StartedTime())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "running", StatusRunning.String())
	assert.Equal(t, "error", StatusError.String())
	assert.Equal(t, "Status(9)", Status(9).String())
}
