package containertest

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Phase is a step of the container test. Phases run in declaration order.
type Phase int

const (
	PhaseCreate Phase = iota
	PhaseStart
	PhaseVerify
)

var phaseNames = [...]string{"CREATE", "START", "VERIFY"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Status is the verdict of the current phase.
type Status int

const (
	StatusPending Status = iota
	StatusSuccess
	StatusFailure
)

var statusNames = [...]string{"PENDING", "SUCCESS", "FAILURE"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// StatusMsg is one status update of a test.
type StatusMsg struct {
	TestID             uuid.UUID
	Phase              Phase
	Status             Status
	Msg                string
	ContainerID        string
	ContainerStartTime time.Time
	// Failure is set when Status is StatusFailure.
	Failure error
}

// Terminal reports whether no further update will follow for the test
// without outside action.
func (m StatusMsg) Terminal() bool {
	return m.Status == StatusFailure || (m.Phase == PhaseVerify && m.Status == StatusSuccess)
}

func (m StatusMsg) String() string {
	if m.Msg == "" {
		return fmt.Sprintf("%s %s", m.Phase, m.Status)
	}
	return fmt.Sprintf("%s %s: %s", m.Phase, m.Status, m.Msg)
}

// Listener receives the status updates of one test. Notify calls for a
// test never overlap and arrive in publication order. Dispose is the last
// call a listener receives.
type Listener interface {
	Notify(msg StatusMsg)
	Dispose()
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	NotifyFn  func(StatusMsg)
	DisposeFn func()
}

func (l ListenerFuncs) Notify(msg StatusMsg) {
	if l.NotifyFn != nil {
		l.NotifyFn(msg)
	}
}

func (l ListenerFuncs) Dispose() {
	if l.DisposeFn != nil {
		l.DisposeFn()
	}
}

func successMessage(p Phase) string {
	switch p {
	case PhaseCreate:
		return "Container created"
	case PhaseStart:
		return "Agent connected"
	case PhaseVerify:
		return "Container verified"
	}
	return ""
}
