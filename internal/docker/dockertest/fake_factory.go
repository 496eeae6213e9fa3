// Package dockertest provides test doubles for internal/docker.
//
// FakeFactory hands out real *docker.Facade values backed by one shared
// whailtest.FakeEngine, so facade code runs for real through the whail jail
// while the daemon is simulated in memory. FakeFacade is a function-field
// fake for tests that need to script individual engine answers.
//
// Usage:
//
//	factory := dockertest.NewFakeFactory()
//	factory.Engine.AddRegistryImage("alpine")
//	mgr, _ := containertest.NewManager(containertest.Options{Factory: factory, ...})
package dockertest

import (
	"context"
	"sync"

	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/internal/docker"
	"github.com/schmitthub/dockercloud/pkg/whail"
	"github.com/schmitthub/dockercloud/pkg/whail/whailtest"
)

// FakeFactory implements docker.FacadeFactory over a FakeEngine.
type FakeFactory struct {
	Engine *whailtest.FakeEngine

	// CreateErr, when set, is returned by CreateFacade.
	CreateErr error

	mu      sync.Mutex
	configs []config.EngineConfig
}

var _ docker.FacadeFactory = (*FakeFactory)(nil)

// NewFakeFactory returns a factory over an empty FakeEngine.
func NewFakeFactory() *FakeFactory {
	return &FakeFactory{Engine: whailtest.NewFakeEngine()}
}

// CreateFacade records cfg and returns a facade over a new engine client.
func (f *FakeFactory) CreateFacade(_ context.Context, cfg config.EngineConfig) (docker.ClientFacade, error) {
	f.mu.Lock()
	f.configs = append(f.configs, cfg)
	err := f.CreateErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	engine := whail.NewFromExisting(f.Engine.NewClient(), docker.EngineOptions(whail.LabelConfig{}))
	return docker.NewFacade(engine), nil
}

// Configs returns every engine config CreateFacade was called with.
func (f *FakeFactory) Configs() []config.EngineConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]config.EngineConfig(nil), f.configs...)
}

// TestContainers returns the containers labeled for testID.
func (f *FakeFactory) TestContainers(testID string) []docker.ContainerInfo {
	var out []docker.ContainerInfo
	for _, s := range f.Engine.Containers() {
		if s.Labels[docker.LabelTestInstanceID] == testID {
			out = append(out, docker.ContainerInfo{
				ID:      s.ID,
				State:   string(s.State),
				Running: s.State == "running",
				Labels:  s.Labels,
			})
		}
	}
	return out
}
