// Package containertest drives the lifecycle test of an agent container:
// CREATE, then START on request, then VERIFY.
//
// A Manager owns every test. One clock-driven scheduler goroutine wakes on
// the poll rate and hands each pending test's current phase to a bounded
// worker pool; no goroutine is parked on a test between ticks. Phase
// results update the test's verdict and the owning instance record and are
// delivered to the bound Listener in order.
//
//	mgr, err := containertest.NewManager(containertest.Options{
//		Resolver:      resolver.NewRegistryResolver("", false),
//		Factory:       docker.EngineFactory{},
//		AgentDetected: registry.IsTestAgentDetected,
//	})
//	id, err := mgr.CreateTest(ctx, cloud, img)
//	_ = mgr.SetListener(id, listener)
//	// once CREATE reports SUCCESS:
//	_ = mgr.StartTestContainer(id)
package containertest
