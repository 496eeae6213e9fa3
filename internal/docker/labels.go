// Package docker is dockercloud's engine middleware. It wraps pkg/whail
// with dockercloud's label conventions and exposes the narrow ClientFacade
// the container test engine drives.
package docker

import (
	"time"

	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/pkg/whail"
)

// Label keys for managed resources.
const (
	// LabelPrefix is the prefix for all dockercloud labels (derived from config.LabelDomain).
	LabelPrefix = config.LabelDomain + "."

	// LabelManaged marks a container as managed by dockercloud.
	LabelManaged = config.LabelManaged

	// LabelTestInstanceID correlates a container with the lifecycle test that created it.
	LabelTestInstanceID = config.LabelTestInstanceID

	// LabelInstanceID correlates a container with its instance record.
	LabelInstanceID = config.LabelInstanceID

	// LabelClientID identifies the cloud client owning the container.
	LabelClientID = config.LabelClientID

	// LabelImage stores the image profile the container was created from.
	LabelImage = config.LabelImage

	// LabelCreated stores the creation timestamp.
	LabelCreated = LabelPrefix + "created"
)

// EngineLabelPrefix is the label prefix for whail.EngineOptions (without trailing dot).
const EngineLabelPrefix = config.LabelDomain

// EngineManagedLabel is the managed label key for whail.EngineOptions.
const EngineManagedLabel = config.EngineManagedLabel

// ManagedLabelValue is the value for the managed label.
const ManagedLabelValue = config.ManagedLabelValue

// EngineOptions returns the whail options every dockercloud engine uses.
func EngineOptions(labels whail.LabelConfig) whail.EngineOptions {
	return whail.EngineOptions{
		LabelPrefix:  EngineLabelPrefix,
		ManagedLabel: EngineManagedLabel,
		Labels:       labels,
	}
}

// AgentLabels returns the correlation labels for a new agent container.
// Empty ids are omitted.
func AgentLabels(req CreateRequest) map[string]string {
	labels := map[string]string{
		LabelCreated: time.Now().UTC().Format(time.RFC3339),
	}
	set := func(k, v string) {
		if v != "" {
			labels[k] = v
		}
	}
	set(LabelTestInstanceID, req.TestInstanceID)
	set(LabelInstanceID, req.InstanceID)
	set(LabelClientID, req.ClientID)
	if req.Profile != "" {
		labels[LabelImage] = req.Profile
	} else {
		set(LabelImage, req.Image)
	}
	return labels
}

// TestFilter returns the label selector for containers of one lifecycle test.
func TestFilter(testID string) map[string]string {
	return map[string]string{LabelTestInstanceID: testID}
}
