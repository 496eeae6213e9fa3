// Package whailtest provides test doubles and helpers for testing code that
// uses the whail engine. It follows the standard library pattern (like
// net/http/httptest) of providing a testable fake alongside the real package.
//
// FakeAPIClient is a function-field based fake of whail.APIClient. Each
// method has a corresponding Fn field that can be set to control behavior.
// Unset methods panic with "not implemented" to fail loudly if unexpected
// calls are made.
//
// FakeEngine is a stateful in-memory daemon. Its NewClient method returns a
// FakeAPIClient whose Fn fields read and mutate shared image and container
// tables, so several engines can observe each other's containers.
//
// Usage:
//
//	fake := whailtest.NewFakeAPIClient()
//	engine := whail.NewFromExisting(fake, whailtest.TestEngineOptions())
//
//	fake.ContainerStartFn = func(ctx context.Context, id string, opts container.StartOptions) error {
//	    return nil
//	}
//
//	whailtest.AssertCalledN(t, fake, "ContainerStart", 1)
package whailtest
