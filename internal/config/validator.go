package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/schmitthub/dockercloud/internal/transport"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Message
}

// MultiValidationError aggregates every problem found in one pass.
type MultiValidationError struct {
	Errors []error
}

func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("found %d configuration errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidationErrors returns the individual errors.
func (e *MultiValidationError) ValidationErrors() []error {
	return e.Errors
}

type validator struct {
	errors []error
}

func (v *validator) addError(field, message string, value interface{}) {
	v.errors = append(v.errors, &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	})
}

func (v *validator) err() error {
	if len(v.errors) > 0 {
		return &MultiValidationError{Errors: v.errors}
	}
	return nil
}

func (v *validator) positive(field string, d time.Duration) {
	if d <= 0 {
		v.addError(field, "must be greater than zero", d)
	}
}

func (v *validator) validateEngine(prefix string, e EngineConfig) {
	if e.URI != "" {
		if _, err := transport.ParseEngineURI(e.URI, e.TLS.Enabled()); err != nil {
			v.addError(prefix+"uri", err.Error(), e.URI)
		}
	}
	if e.ReadTimeout < 0 {
		v.addError(prefix+"read_timeout", "must not be negative", e.ReadTimeout)
	}
	if e.ConnectTimeout < 0 {
		v.addError(prefix+"connect_timeout", "must not be negative", e.ConnectTimeout)
	}
	if (e.TLS.Cert == "") != (e.TLS.Key == "") {
		v.addError(prefix+"tls", "cert and key must be set together", nil)
	}
}

// Validate checks the settings for errors and returns all found issues.
func (s *Settings) Validate() error {
	v := &validator{}
	v.validateEngine("engine.", s.Engine)
	v.positive("test.poll_rate", s.Test.PollRate)
	v.positive("test.idle_time", s.Test.IdleTime)
	v.positive("test.cleanup_rate", s.Test.CleanupRate)
	v.positive("test.agent_wait_timeout", s.Test.AgentWaitTimeout)
	v.positive("test.call_timeout", s.Test.CallTimeout)
	if s.Test.Workers <= 0 {
		v.addError("test.workers", "must be greater than zero", s.Test.Workers)
	}
	return v.err()
}

// Validate checks a cloud client snapshot.
func (c CloudConfig) Validate() error {
	v := &validator{}
	v.validateEngine("engine.", c.Engine)
	return v.err()
}

// Validate checks an image profile.
func (c ImageConfig) Validate() error {
	v := &validator{}
	if strings.TrimSpace(c.Image) == "" {
		v.addError("image", "is required", nil)
	}
	if c.Credentials != nil && c.Credentials.Username == "" {
		v.addError("credentials.username", "is required when credentials are set", nil)
	}
	for k := range c.Spec.Labels {
		if strings.HasPrefix(k, labelPrefix) {
			v.addError("spec.labels", "keys under "+labelPrefix+" are reserved", k)
		}
	}
	return v.err()
}
