package docker

import (
	"maps"
	"slices"

	"github.com/schmitthub/dockercloud/internal/config"
)

// AgentEnv returns the environment for an agent container.
//
// Precedence (last wins): spec env → published correlation variables. The
// agent reads the correlation variables back when it registers, so user env
// may not shadow them. The result is sorted by key for deterministic ordering.
func AgentEnv(req CreateRequest) []string {
	m := make(map[string]string, len(req.Spec.Env)+4)
	maps.Copy(m, req.Spec.Env)

	publish := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	publish(config.EnvServerURL, req.ServerURL)
	publish(config.EnvInstanceID, req.InstanceID)
	publish(config.EnvTestInstanceID, req.TestInstanceID)
	publish(config.EnvClientID, req.ClientID)

	env := make([]string, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		env = append(env, k+"="+m[k])
	}
	return env
}
