package docker

import (
	"maps"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"

	"github.com/schmitthub/dockercloud/internal/config"
	"github.com/schmitthub/dockercloud/pkg/whail"
)

// DockerError is re-exported so callers can errors.As engine failures
// without importing whail.
type DockerError = whail.DockerError

// ContainerInfo is a point-in-time view of one agent container.
type ContainerInfo struct {
	ID      string
	Name    string
	Image   string
	State   string
	Status  string
	Running bool
	Labels  map[string]string
	Created time.Time
}

// Clone returns a copy that shares no maps with c.
func (c ContainerInfo) Clone() ContainerInfo {
	c.Labels = maps.Clone(c.Labels)
	return c
}

// ShortID returns the first 12 characters of the container id.
func (c ContainerInfo) ShortID() string {
	if len(c.ID) > 12 {
		return c.ID[:12]
	}
	return c.ID
}

func containerInfoFromSummary(s container.Summary) ContainerInfo {
	var name string
	if len(s.Names) > 0 {
		name = strings.TrimPrefix(s.Names[0], "/")
	}
	info := ContainerInfo{
		ID:      s.ID,
		Name:    name,
		Image:   s.Image,
		State:   string(s.State),
		Status:  s.Status,
		Running: s.State == "running",
		Labels:  maps.Clone(s.Labels),
	}
	if s.Created > 0 {
		info.Created = time.Unix(s.Created, 0)
	}
	return info
}

// CreateRequest describes an agent container to create.
type CreateRequest struct {
	// Image is the resolved image reference.
	Image string
	// Profile is the image profile name, used for naming and labels.
	Profile string
	Spec    config.ContainerSpec
	// Name overrides the generated container name.
	Name string

	ServerURL      string
	InstanceID     string
	TestInstanceID string
	ClientID       string
}

// CreatedContainer identifies a freshly created container.
type CreatedContainer struct {
	ID   string
	Name string
}
