package whailtest

import (
	"context"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"

	"github.com/schmitthub/dockercloud/pkg/whail"
)

const (
	// TestLabelPrefix is the label prefix used by test engines.
	TestLabelPrefix = "com.whailtest"

	// TestManagedLabel is the managed label suffix used by test engines.
	TestManagedLabel = "managed"
)

// testManagedLabelKey is the full managed label key for test engines.
var testManagedLabelKey = TestLabelPrefix + "." + TestManagedLabel

// TestEngineOptions returns EngineOptions configured for unit testing.
func TestEngineOptions() whail.EngineOptions {
	return whail.EngineOptions{
		LabelPrefix:  TestLabelPrefix,
		ManagedLabel: TestManagedLabel,
	}
}

// NewFakeAPIClient creates a FakeAPIClient with sensible defaults.
// ContainerList answers id lookups with a managed container so that whail's
// IsContainerManaged checks pass transparently, and Ping succeeds.
func NewFakeAPIClient() *FakeAPIClient {
	f := &FakeAPIClient{}

	f.PingFn = func(context.Context) (types.Ping, error) {
		return types.Ping{APIVersion: "1.47", OSType: "linux"}, nil
	}

	f.ContainerListFn = func(_ context.Context, opts container.ListOptions) ([]container.Summary, error) {
		ids := opts.Filters.Get("id")
		out := make([]container.Summary, 0, len(ids))
		for _, id := range ids {
			out = append(out, ManagedContainer(id, nil))
		}
		return out, nil
	}

	return f
}

// ManagedContainer returns a running container summary carrying the test
// managed label plus labels.
func ManagedContainer(id string, labels map[string]string) container.Summary {
	return container.Summary{
		ID:     id,
		Names:  []string{"/" + id},
		State:  "running",
		Labels: whail.MergeLabels(labels, map[string]string{testManagedLabelKey: "true"}),
	}
}

// UnmanagedContainer returns a running container summary without the managed label.
func UnmanagedContainer(id string) container.Summary {
	return container.Summary{
		ID:     id,
		Names:  []string{"/" + id},
		State:  "running",
		Labels: map[string]string{},
	}
}

// PullStream builds an ImagePull response body from JSON message lines.
func PullStream(lines ...string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(strings.Join(lines, "\n") + "\n"))
}

// AssertNotCalled fails the test if the given method was called on the fake.
func AssertNotCalled(t *testing.T, fake *FakeAPIClient, method string) {
	t.Helper()
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if slices.Contains(fake.Calls, method) {
		t.Errorf("expected %s to NOT be called, but it was; calls: %v", method, fake.Calls)
	}
}

// AssertCalledN fails the test if the given method was not called exactly n times.
func AssertCalledN(t *testing.T, fake *FakeAPIClient, method string, n int) {
	t.Helper()
	if count := fake.CallCount(method); count != n {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		t.Errorf("expected %s to be called %d times, but was called %d times; calls: %v", method, n, count, fake.Calls)
	}
}
