// Package instance holds the live state of one provisioned agent container.
package instance

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schmitthub/dockercloud/internal/agent"
	"github.com/schmitthub/dockercloud/internal/docker"
)

var (
	// ErrInvalidArgument is returned by setters given an empty or invalid value.
	ErrInvalidArgument = errors.New("instance: invalid argument")
	// ErrFailed is returned by SetStatus once a failure has been recorded.
	ErrFailed = errors.New("instance: failure already recorded")
)

// UnknownName is reported by Name before a container name is assigned.
const UnknownName = "<Unknown>"

// Status is the lifecycle status of an instance.
type Status int

const (
	StatusUnknown Status = iota
	StatusScheduling
	StatusStarting
	StatusRunning
	StatusStopping
	StatusStopped
	StatusError
)

var statusNames = [...]string{"unknown", "scheduling", "starting", "running", "stopping", "stopped", "error"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

func (s Status) valid() bool {
	return s >= StatusUnknown && s <= StatusError
}

// ErrorInfo describes why an instance failed.
type ErrorInfo struct {
	Message string
	Cause   error
}

func (e ErrorInfo) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

func (e ErrorInfo) Unwrap() error { return e.Cause }

// ImageRef is the externally owned image profile an instance runs.
type ImageRef interface {
	ImageName() string
}

// Snapshot is a consistent view of the mutable fields taken under one lock.
type Snapshot struct {
	ContainerID   string
	ContainerName string
	Status        Status
	Error         *ErrorInfo
	StartedTime   time.Time
}

// Instance is a mutex-guarded record. Getters return copies; the lock is
// never held across engine calls since the type has no engine access.
type Instance struct {
	id    uuid.UUID
	image ImageRef
	now   func() time.Time

	mu            sync.Mutex
	containerID   string
	containerName string
	info          *docker.ContainerInfo
	status        Status
	errInfo       *ErrorInfo
	startedTime   time.Time
}

// Option configures an Instance.
type Option func(*Instance)

// WithNow sets the time source used for started times.
func WithNow(now func() time.Time) Option {
	return func(i *Instance) { i.now = now }
}

// New creates an instance for img with a fresh id and started time.
func New(img ImageRef, opts ...Option) (*Instance, error) {
	if img == nil || strings.TrimSpace(img.ImageName()) == "" {
		return nil, fmt.Errorf("%w: image name is required", ErrInvalidArgument)
	}
	i := &Instance{
		id:     uuid.New(),
		image:  img,
		now:    time.Now,
		status: StatusUnknown,
	}
	for _, opt := range opts {
		opt(i)
	}
	i.startedTime = i.now()
	return i, nil
}

func (i *Instance) ID() uuid.UUID { return i.id }

// InstanceID is the string form of ID, as published to containers.
func (i *Instance) InstanceID() string { return i.id.String() }

func (i *Instance) Image() ImageRef { return i.image }

func (i *Instance) ContainerID() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.containerID
}

func (i *Instance) ContainerName() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.containerName
}

// Name returns the container name or UnknownName.
func (i *Instance) Name() string {
	if n := i.ContainerName(); n != "" {
		return n
	}
	return UnknownName
}

func (i *Instance) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// ErrorInfo returns a copy of the recorded failure, if any.
func (i *Instance) ErrorInfo() (ErrorInfo, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.errInfo == nil {
		return ErrorInfo{}, false
	}
	return *i.errInfo, true
}

// ContainerInfo returns a copy of the last engine snapshot, if any.
func (i *Instance) ContainerInfo() (docker.ContainerInfo, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.info == nil {
		return docker.ContainerInfo{}, false
	}
	return i.info.Clone(), true
}

func (i *Instance) StartedTime() time.Time {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.startedTime
}

// Snapshot reads status, error info and identity in one critical section.
func (i *Instance) Snapshot() Snapshot {
	i.mu.Lock()
	defer i.mu.Unlock()
	s := Snapshot{
		ContainerID:   i.containerID,
		ContainerName: i.containerName,
		Status:        i.status,
		StartedTime:   i.startedTime,
	}
	if i.errInfo != nil {
		e := *i.errInfo
		s.Error = &e
	}
	return s
}

func (i *Instance) SetContainerID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: empty container id", ErrInvalidArgument)
	}
	i.mu.Lock()
	i.containerID = id
	i.mu.Unlock()
	return nil
}

func (i *Instance) SetContainerName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty container name", ErrInvalidArgument)
	}
	i.mu.Lock()
	i.containerName = name
	i.mu.Unlock()
	return nil
}

// SetStatus changes the status. StatusError can only be reached through
// NotifyFailure, and a recorded failure is never overwritten.
func (i *Instance) SetStatus(s Status) error {
	if !s.valid() || s == StatusError {
		return fmt.Errorf("%w: status %s", ErrInvalidArgument, s)
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.errInfo != nil {
		return ErrFailed
	}
	i.status = s
	return nil
}

// SetContainerInfo stores a copy of info.
func (i *Instance) SetContainerInfo(info *docker.ContainerInfo) error {
	if info == nil {
		return fmt.Errorf("%w: nil container info", ErrInvalidArgument)
	}
	c := info.Clone()
	i.mu.Lock()
	i.info = &c
	i.mu.Unlock()
	return nil
}

// UpdateStartedTime resets the started time to now.
func (i *Instance) UpdateStartedTime() {
	t := i.now()
	i.mu.Lock()
	i.startedTime = t
	i.mu.Unlock()
}

// SetStartedTime records when the container was actually started.
func (i *Instance) SetStartedTime(t time.Time) error {
	if t.IsZero() {
		return fmt.Errorf("%w: zero started time", ErrInvalidArgument)
	}
	i.mu.Lock()
	i.startedTime = t
	i.mu.Unlock()
	return nil
}

// NotifyFailure records msg and cause and forces StatusError in the same
// critical section, so no reader sees one without the other.
func (i *Instance) NotifyFailure(msg string, cause error) error {
	if strings.TrimSpace(msg) == "" {
		return fmt.Errorf("%w: empty failure message", ErrInvalidArgument)
	}
	i.mu.Lock()
	i.errInfo = &ErrorInfo{Message: msg, Cause: cause}
	i.status = StatusError
	i.mu.Unlock()
	return nil
}

// ContainsAgent reports whether d was started for this instance.
func (i *Instance) ContainsAgent(d agent.Description) bool {
	return d.InstanceID() == i.id.String()
}
