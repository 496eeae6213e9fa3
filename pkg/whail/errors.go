package whail

import (
	"fmt"
	"strings"
)

// DockerError represents a user-friendly Docker error with remediation steps.
// It wraps underlying Docker SDK errors with context and actionable guidance.
type DockerError struct {
	Op        string   // Operation that failed (e.g., "connect", "pull", "start")
	Err       error    // Underlying error
	Message   string   // Human-readable message
	NextSteps []string // Suggested remediation steps
}

func (e *DockerError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *DockerError) Unwrap() error {
	return e.Err
}

// FormatUserError formats the error for display to users with next steps.
func (e *DockerError) FormatUserError() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", e.Message))

	if e.Err != nil {
		sb.WriteString(fmt.Sprintf("  Details: %s\n", e.Err.Error()))
	}

	if len(e.NextSteps) > 0 {
		sb.WriteString("\nNext Steps:\n")
		for i, step := range e.NextSteps {
			sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, step))
		}
	}

	return sb.String()
}

// ErrDockerNotRunning returns an error for when the Docker daemon is not accessible.
func ErrDockerNotRunning(err error) *DockerError {
	return &DockerError{
		Op:      "connect",
		Err:     err,
		Message: "Cannot connect to Docker daemon",
		NextSteps: []string{
			"Ensure Docker is installed and running",
			"Check the engine URI (engine.uri or DOCKERCLOUD_ENGINE_URI)",
			"For unix sockets, check the socket is accessible: ls -la /var/run/docker.sock",
			"For tcp engines with TLS, verify the CA, cert and key paths",
		},
	}
}

// ErrImageNotFound returns an error for when an image cannot be found.
func ErrImageNotFound(image string, err error) *DockerError {
	return &DockerError{
		Op:      "pull",
		Err:     err,
		Message: fmt.Sprintf("Image '%s' not found", image),
		NextSteps: []string{
			"Check the image name and tag are correct",
			"Verify you have network access to the registry",
			"Try pulling manually: docker pull " + image,
		},
	}
}

// ErrImagePullFailed returns an error for when an image pull fails.
func ErrImagePullFailed(image string, err error) *DockerError {
	return &DockerError{
		Op:      "pull",
		Err:     err,
		Message: fmt.Sprintf("Failed to pull image '%s'", image),
		NextSteps: []string{
			"Check registry credentials for private images",
			"Verify the image exists in the registry, not only locally",
			"Try pulling manually: docker pull " + image,
		},
	}
}

// ErrContainerNotFound returns an error for when a container cannot be found.
func ErrContainerNotFound(name string) *DockerError {
	return &DockerError{
		Op:      "find",
		Err:     nil,
		Message: fmt.Sprintf("Container '%s' not found", name),
		NextSteps: []string{
			"Check if the container was started",
			"Check all containers: docker ps -a",
		},
	}
}

// ErrContainerStartFailed returns an error for when a container fails to start.
func ErrContainerStartFailed(name string, err error) *DockerError {
	return &DockerError{
		Op:      "start",
		Err:     err,
		Message: fmt.Sprintf("Failed to start container '%s'", name),
		NextSteps: []string{
			"Check container logs: docker logs " + name,
			"Verify the image is valid",
			"Check for port conflicts",
			"Try removing and recreating the container",
		},
	}
}

// ErrContainerCreateFailed returns an error for when container creation fails.
func ErrContainerCreateFailed(err error) *DockerError {
	return &DockerError{
		Op:      "create",
		Err:     err,
		Message: "Failed to create container",
		NextSteps: []string{
			"Check if the image exists",
			"Verify volume mount paths are valid",
			"Check for conflicting container names",
			"Review Docker daemon logs for details",
		},
	}
}

// ErrContainerRemoveFailed returns an error for when container removal fails.
func ErrContainerRemoveFailed(name string, err error) *DockerError {
	return &DockerError{
		Op:      "remove",
		Err:     err,
		Message: fmt.Sprintf("Failed to remove container '%s'", name),
		NextSteps: []string{
			"Check if the container exists",
			"Review Docker daemon logs for details",
		},
	}
}

// ErrContainerListFailed returns an error for when listing containers fails.
func ErrContainerListFailed(err error) *DockerError {
	return &DockerError{
		Op:      "list",
		Err:     err,
		Message: "Failed to list containers",
		NextSteps: []string{
			"Check that the Docker daemon is healthy",
			"Review Docker daemon logs for details",
		},
	}
}
