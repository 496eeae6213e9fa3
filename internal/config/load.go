package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/schmitthub/dockercloud/internal/logger"
)

func newViperConfig() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnvKeysFromSchema(v)
	SetDefaults(v)
	return v
}

// bindEnvKeysFromSchema walks the Settings struct via reflection and binds
// every leaf mapstructure path to its DOCKERCLOUD_* env var, so a new field
// is overridable from the environment without a separate key list.
func bindEnvKeysFromSchema(v *viper.Viper) {
	replacer := strings.NewReplacer(".", "_")
	for _, key := range collectLeafPaths(reflect.TypeOf(Settings{}), "") {
		envVar := EnvPrefix + "_" + strings.ToUpper(replacer.Replace(key))
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("config: BindEnv(%q, %q) failed: %v", key, envVar, err))
		}
	}
}

// collectLeafPaths returns the dotted mapstructure paths of all leaf fields
// of t. Struct fields are recursed into with their tag as the path prefix.
func collectLeafPaths(t reflect.Type, prefix string) []string {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}

	var paths []string
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		fullPath := tag
		if prefix != "" {
			fullPath = prefix + "." + tag
		}

		ft := field.Type
		if ft.Kind() == reflect.Ptr {
			ft = ft.Elem()
		}

		if ft.Kind() == reflect.Struct && ft != reflect.TypeOf(time.Duration(0)) {
			paths = append(paths, collectLeafPaths(ft, fullPath)...)
		} else {
			paths = append(paths, fullPath)
		}
	}
	return paths
}

func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// Loader reads dockercloud.yaml plus DOCKERCLOUD_* overrides.
type Loader struct {
	mu   sync.Mutex
	v    *viper.Viper
	file string
}

// NewLoader creates a loader. An empty file searches ConfigDir for
// dockercloud.yaml; a missing default file is not an error.
func NewLoader(file string) *Loader {
	return &Loader{v: newViperConfig(), file: file}
}

// Load reads the config file (if any), applies env overrides and validates.
func (l *Loader) Load() (*Settings, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != "" {
		if err := validateConfigFileExact(l.file); err != nil {
			return nil, err
		}
		l.v.SetConfigFile(l.file)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		if dir, err := ConfigDir(); err == nil {
			l.v.AddConfigPath(dir)
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		logger.Debug().Msg("no config file found, using defaults")
	}

	return l.decode()
}

func (l *Loader) decode() (*Settings, error) {
	var s Settings
	if err := l.v.Unmarshal(&s, decodeHook()); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// ConfigFileUsed returns the path of the file read by Load, if any.
func (l *Loader) ConfigFileUsed() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.v.ConfigFileUsed()
}

// Watch re-reads the config file whenever it changes and hands the freshly
// decoded settings (or the decode error) to onChange. Load must be called first.
func (l *Loader) Watch(onChange func(*Settings, error)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		logger.Debug().Str("file", e.Name).Str("op", e.Op.String()).Msg("config file changed")

		l.mu.Lock()
		s, err := l.decode()
		l.mu.Unlock()
		onChange(s, err)
	})
	l.v.WatchConfig()
}

// LoadFromString decodes settings from YAML content with env overrides applied.
func LoadFromString(content string) (*Settings, error) {
	if err := validateYAMLStrict(content); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	l := &Loader{v: newViperConfig()}
	l.v.SetConfigType("yaml")
	if err := l.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("parsing config from string: %w", err)
	}
	return l.decode()
}

// validateYAMLStrict rejects unknown keys, which viper would silently ignore.
func validateYAMLStrict(content string) error {
	dec := yaml.NewDecoder(strings.NewReader(content))
	dec.KnownFields(true)
	var s Settings
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func validateConfigFileExact(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := validateYAMLStrict(string(content)); err != nil {
		return fmt.Errorf("invalid config %s: %w", path, err)
	}
	return nil
}
