package whail

import (
	"context"
	"strings"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

// ContainerCreate adds the managed labels before creating the container.
// The provided labels are merged with the engine's configured labels.
func (e *Engine) ContainerCreate(
	ctx context.Context,
	config *container.Config,
	hostConfig *container.HostConfig,
	networkingConfig *network.NetworkingConfig,
	platform *ocispec.Platform,
	name string,
	extraLabels ...map[string]string,
) (container.CreateResponse, error) {
	labels := append([]map[string]string{config.Labels}, extraLabels...)
	config.Labels = e.containerLabels(labels...)

	resp, err := e.APIClient.ContainerCreate(ctx, config, hostConfig, networkingConfig, platform, name)
	if err != nil {
		return container.CreateResponse{}, ErrContainerCreateFailed(err)
	}
	return resp, nil
}

// ContainerStart checks that the container is managed before starting it.
func (e *Engine) ContainerStart(ctx context.Context, containerID string, opts container.StartOptions) error {
	isManaged, err := e.IsContainerManaged(ctx, containerID)
	if err != nil {
		return ErrContainerStartFailed(containerID, err)
	}
	if !isManaged {
		return ErrContainerNotFound(containerID)
	}
	if err := e.APIClient.ContainerStart(ctx, containerID, opts); err != nil {
		return ErrContainerStartFailed(containerID, err)
	}
	return nil
}

// ContainerRemove only removes managed containers.
func (e *Engine) ContainerRemove(ctx context.Context, containerID string, force bool) error {
	isManaged, err := e.IsContainerManaged(ctx, containerID)
	if err != nil {
		return ErrContainerRemoveFailed(containerID, err)
	}
	if !isManaged {
		return ErrContainerNotFound(containerID)
	}
	err = e.APIClient.ContainerRemove(ctx, containerID, container.RemoveOptions{
		Force:         force,
		RemoveVolumes: true,
	})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return ErrContainerNotFound(containerID)
		}
		return ErrContainerRemoveFailed(containerID, err)
	}
	return nil
}

// ContainerList lists containers matching the filter.
// The managed label filter is automatically injected.
func (e *Engine) ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error) {
	options.Filters = e.injectManagedFilter(options.Filters)
	list, err := e.APIClient.ContainerList(ctx, options)
	if err != nil {
		return nil, ErrContainerListFailed(err)
	}
	return list, nil
}

// ContainerListByLabels lists containers matching additional label filters.
// The managed label filter is automatically injected.
func (e *Engine) ContainerListByLabels(ctx context.Context, labels map[string]string, all bool) ([]container.Summary, error) {
	f := e.newManagedFilter()
	for k, v := range labels {
		f.Add("label", k+"="+v)
	}
	return e.ContainerList(ctx, container.ListOptions{
		All:     all,
		Filters: f,
	})
}

// IsContainerManaged reports whether containerID exists and carries the
// managed label. A missing container is not an error.
func (e *Engine) IsContainerManaged(ctx context.Context, containerID string) (bool, error) {
	if containerID == "" {
		return false, nil
	}
	list, err := e.APIClient.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("id", containerID)),
	})
	if err != nil {
		return false, err
	}
	for _, c := range list {
		if strings.HasPrefix(c.ID, containerID) {
			return e.isManagedLabelPresent(c.Labels), nil
		}
	}
	return false, nil
}
