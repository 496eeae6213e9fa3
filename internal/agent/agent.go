// Package agent tracks build agents that registered back from dockercloud
// containers and answers whether a given test's agent has connected.
package agent

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/internal/logger"
)

// ErrNoName is returned when registering an agent without a name.
var ErrNoName = errors.New("agent: name is required")

// Predicate answers whether an agent spawned for testID has registered.
type Predicate func(testID uuid.UUID) bool

// Always is a Predicate that reports every agent as connected.
func Always(uuid.UUID) bool { return true }

// Description is what a build agent reports when it registers: its name and
// the environment it was started with.
type Description struct {
	Name         string
	Env          map[string]string
	RegisteredAt time.Time
}

// InstanceID returns the instance id the container was started with.
func (d Description) InstanceID() string {
	return d.Env[config.EnvInstanceID]
}

// TestInstanceID returns the lifecycle test id, if the agent was spawned by a test.
func (d Description) TestInstanceID() string {
	return d.Env[config.EnvTestInstanceID]
}

// ClientID returns the cloud client id.
func (d Description) ClientID() string {
	return d.Env[config.EnvClientID]
}

func (d Description) clone() Description {
	d.Env = maps.Clone(d.Env)
	return d
}

// Registry is a concurrency-safe set of connected agents keyed by name.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Description
	now    func() time.Time
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{agents: make(map[string]Description), now: time.Now}
}

// Register adds or replaces an agent.
func (r *Registry) Register(d Description) error {
	if strings.TrimSpace(d.Name) == "" {
		return ErrNoName
	}
	d = d.clone()
	if d.RegisteredAt.IsZero() {
		d.RegisteredAt = r.now()
	}

	r.mu.Lock()
	r.agents[d.Name] = d
	r.mu.Unlock()

	logger.Debug().
		Str("agent", d.Name).
		Str("instance", d.InstanceID()).
		Str("test", d.TestInstanceID()).
		Msg("agent registered")
	return nil
}

// Unregister removes an agent. Unknown names are ignored.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.agents, name)
	r.mu.Unlock()
}

// Agents returns a snapshot of registered agents sorted by name.
func (r *Registry) Agents() []Description {
	r.mu.RLock()
	out := make([]Description, 0, len(r.agents))
	for _, d := range r.agents {
		out = append(out, d.clone())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b Description) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// FindByInstance returns the agent started for instanceID.
func (r *Registry) FindByInstance(instanceID string) (Description, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.agents {
		if d.InstanceID() == instanceID {
			return d.clone(), true
		}
	}
	return Description{}, false
}

// IsTestAgentDetected reports whether an agent carrying testID has registered.
// It satisfies Predicate.
func (r *Registry) IsTestAgentDetected(testID uuid.UUID) bool {
	want := testID.String()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.agents {
		if d.TestInstanceID() == want {
			return true
		}
	}
	return false
}
