package config

// LabelDomain is the prefix for all dockercloud Docker labels (dockercloud.*).
const LabelDomain = "dockercloud"

const (
	// ConfigDirEnv overrides the directory holding dockercloud.yaml and logs.
	ConfigDirEnv = "DOCKERCLOUD_CONFIG_DIR"
	// EnvPrefix is the viper environment variable prefix.
	EnvPrefix = "DOCKERCLOUD"
	// ConfigFileName is the settings file name (without extension).
	ConfigFileName = "dockercloud"
	// LogsSubdir is the subdirectory for log files
	LogsSubdir = "logs"
)

// Label keys for managed resources.
// internal/docker re-exports these so callers outside the config layer use
// a single import for engine conventions.
const (
	labelPrefix = LabelDomain + "."

	// LabelManaged marks a container as managed by dockercloud.
	LabelManaged = labelPrefix + "managed"

	// LabelTestInstanceID correlates a container with the lifecycle test that created it.
	LabelTestInstanceID = labelPrefix + "test-instance-id"

	// LabelInstanceID correlates a container with its instance record.
	LabelInstanceID = labelPrefix + "instance-id"

	// LabelClientID identifies the cloud client that owns the container.
	LabelClientID = labelPrefix + "client-id"

	// LabelImage stores the image profile name the container was created from.
	LabelImage = labelPrefix + "image"
)

// ManagedLabelValue is the value for the managed label.
const ManagedLabelValue = "true"

// EngineManagedLabel is the managed label suffix for whail.EngineOptions.
const EngineManagedLabel = "managed"

// Environment variables published to agent containers. The build agent reads
// them back and reports them in its registration, which is how a connecting
// agent is matched to the instance and test that spawned it.
const (
	EnvServerURL      = "SERVER_URL"
	EnvInstanceID     = "DOCKERCLOUD_INSTANCE_ID"
	EnvTestInstanceID = "DOCKERCLOUD_TEST_INSTANCE_ID"
	EnvClientID       = "DOCKERCLOUD_CLIENT_ID"
)
