package config

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultReadTimeout      = 30 * time.Second
	DefaultConnectTimeout   = 10 * time.Second
	DefaultPollRate         = time.Second
	DefaultIdleTime         = 10 * time.Minute
	DefaultCleanupRate      = time.Minute
	DefaultAgentWaitTimeout = 120 * time.Second
	DefaultCallTimeout      = 2 * time.Minute
	DefaultWorkers          = 8
)

// SetDefaults registers every default with v so env vars and the config
// file only need to carry overrides.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("engine.uri", "")
	v.SetDefault("engine.api_version", "")
	v.SetDefault("engine.tls.verify", false)
	v.SetDefault("engine.read_timeout", DefaultReadTimeout)
	v.SetDefault("engine.connect_timeout", DefaultConnectTimeout)

	v.SetDefault("test.poll_rate", DefaultPollRate)
	v.SetDefault("test.idle_time", DefaultIdleTime)
	v.SetDefault("test.cleanup_rate", DefaultCleanupRate)
	v.SetDefault("test.agent_wait_timeout", DefaultAgentWaitTimeout)
	v.SetDefault("test.call_timeout", DefaultCallTimeout)
	v.SetDefault("test.workers", DefaultWorkers)

	v.SetDefault("server_url", "")

	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_age_days", 7)
	v.SetDefault("logging.max_backups", 3)
}

// DefaultSettings returns Settings populated with the registered defaults.
func DefaultSettings() *Settings {
	return &Settings{
		Engine: EngineConfig{
			ReadTimeout:    DefaultReadTimeout,
			ConnectTimeout: DefaultConnectTimeout,
		},
		Test: TestConfig{
			PollRate:         DefaultPollRate,
			IdleTime:         DefaultIdleTime,
			CleanupRate:      DefaultCleanupRate,
			AgentWaitTimeout: DefaultAgentWaitTimeout,
			CallTimeout:      DefaultCallTimeout,
			Workers:          DefaultWorkers,
		},
		Logging: LoggingConfig{
			MaxSizeMB:  50,
			MaxAgeDays: 7,
			MaxBackups: 3,
		},
	}
}

// DefaultConfigYAML documents every key with its default value.
const DefaultConfigYAML = `# dockercloud configuration

engine:
  # tcp://host[:port], unix:///var/run/docker.sock or npipe:////./pipe/docker_engine
  # uri: "unix:///var/run/docker.sock"
  # api_version: "1.47"
  # tls:
  #   ca: "/path/ca.pem"
  #   cert: "/path/cert.pem"
  #   key: "/path/key.pem"
  #   verify: true
  read_timeout: 30s
  connect_timeout: 10s

test:
  poll_rate: 1s
  idle_time: 10m
  cleanup_rate: 1m
  agent_wait_timeout: 120s
  call_timeout: 2m
  workers: 8

# Default server URL published to agent containers.
# server_url: "https://ci.example.com"

logging:
  max_size_mb: 50
  max_age_days: 7
  max_backups: 3
`
