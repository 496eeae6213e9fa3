package config

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Settings is the top-level dockercloud configuration (dockercloud.yaml).
type Settings struct {
	Engine    EngineConfig  `yaml:"engine" mapstructure:"engine"`
	Test      TestConfig    `yaml:"test" mapstructure:"test"`
	ServerURL string        `yaml:"server_url" mapstructure:"server_url"`
	Logging   LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

// EngineConfig describes how to reach a container engine daemon.
type EngineConfig struct {
	// URI is tcp://host[:port], unix:///path or npipe:////./pipe/name.
	URI string `yaml:"uri" mapstructure:"uri"`
	// APIVersion pins the engine API version. Empty negotiates.
	APIVersion     string        `yaml:"api_version" mapstructure:"api_version"`
	TLS            TLSConfig     `yaml:"tls" mapstructure:"tls"`
	ReadTimeout    time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`
}

// TLSConfig holds client certificate settings for tcp:// engines.
type TLSConfig struct {
	CA     string `yaml:"ca" mapstructure:"ca"`
	Cert   string `yaml:"cert" mapstructure:"cert"`
	Key    string `yaml:"key" mapstructure:"key"`
	Verify bool   `yaml:"verify" mapstructure:"verify"`
}

// Enabled reports whether any TLS material is configured.
func (t TLSConfig) Enabled() bool {
	return t.CA != "" || t.Cert != "" || t.Key != "" || t.Verify
}

// TestConfig tunes the container test scheduler.
type TestConfig struct {
	PollRate         time.Duration `yaml:"poll_rate" mapstructure:"poll_rate"`
	IdleTime         time.Duration `yaml:"idle_time" mapstructure:"idle_time"`
	CleanupRate      time.Duration `yaml:"cleanup_rate" mapstructure:"cleanup_rate"`
	AgentWaitTimeout time.Duration `yaml:"agent_wait_timeout" mapstructure:"agent_wait_timeout"`
	CallTimeout      time.Duration `yaml:"call_timeout" mapstructure:"call_timeout"`
	Workers          int           `yaml:"workers" mapstructure:"workers"`
}

// LoggingConfig configures file logging.
type LoggingConfig struct {
	FileEnabled *bool `yaml:"file_enabled" mapstructure:"file_enabled"`
	MaxSizeMB   int   `yaml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxAgeDays  int   `yaml:"max_age_days" mapstructure:"max_age_days"`
	MaxBackups  int   `yaml:"max_backups" mapstructure:"max_backups"`
}

// CloudConfig is the per-client connection snapshot a test is created with.
type CloudConfig struct {
	ClientID  uuid.UUID
	ServerURL string
	Engine    EngineConfig
}

// RegistryCredentials authenticate image pulls.
type RegistryCredentials struct {
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	ServerAddress string `yaml:"server_address"`
}

// String never prints the password.
func (c RegistryCredentials) String() string {
	return c.Username + "@" + c.ServerAddress
}

// ContainerSpec is the user-supplied shape of an agent container.
type ContainerSpec struct {
	Cmd         []string          `yaml:"cmd"`
	Entrypoint  []string          `yaml:"entrypoint"`
	Env         map[string]string `yaml:"env"`
	Labels      map[string]string `yaml:"labels"`
	Ports       []string          `yaml:"ports"`
	Binds       []string          `yaml:"binds"`
	Memory      string            `yaml:"memory"`
	CPUs        string            `yaml:"cpus"`
	Platform    string            `yaml:"platform"`
	NetworkMode string            `yaml:"network_mode"`
	Privileged  bool              `yaml:"privileged"`
	User        string            `yaml:"user"`
	WorkingDir  string            `yaml:"working_dir"`
}

// Clone returns a deep copy of the spec.
func (s ContainerSpec) Clone() ContainerSpec {
	out := s
	out.Cmd = slices.Clone(s.Cmd)
	out.Entrypoint = slices.Clone(s.Entrypoint)
	out.Env = maps.Clone(s.Env)
	out.Labels = maps.Clone(s.Labels)
	out.Ports = slices.Clone(s.Ports)
	out.Binds = slices.Clone(s.Binds)
	return out
}

// ImageConfig is an image profile: what to run and how to get it.
type ImageConfig struct {
	// Profile names this image configuration. Used in container names and labels.
	Profile      string
	Image        string
	PullOnCreate bool
	Credentials  *RegistryCredentials
	Spec         ContainerSpec
}

// ImageName returns the configured image reference.
func (c ImageConfig) ImageName() string {
	return c.Image
}

// Clone returns a deep copy so a test's snapshot can't be mutated by its creator.
func (c ImageConfig) Clone() ImageConfig {
	out := c
	out.Spec = c.Spec.Clone()
	if c.Credentials != nil {
		creds := *c.Credentials
		out.Credentials = &creds
	}
	return out
}
