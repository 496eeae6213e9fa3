package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseContainerSpec decodes a container spec document. Unknown keys are rejected.
func ParseContainerSpec(r io.Reader) (ContainerSpec, error) {
	var spec ContainerSpec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&spec); err != nil && !errors.Is(err, io.EOF) {
		return ContainerSpec{}, fmt.Errorf("parsing container spec: %w", err)
	}
	for _, p := range spec.Ports {
		if strings.TrimSpace(p) == "" {
			return ContainerSpec{}, &ValidationError{Field: "ports", Message: "empty port spec"}
		}
	}
	return spec, nil
}

// LoadContainerSpec reads a container spec YAML file.
func LoadContainerSpec(path string) (ContainerSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return ContainerSpec{}, fmt.Errorf("opening container spec: %w", err)
	}
	defer f.Close()
	return ParseContainerSpec(f)
}
