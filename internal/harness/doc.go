// Package harness runs fidelity scenarios.
//
// A Runner handles one scenario: it captures a single candidate screenshot,
// loads every golden image and compares the candidate against each golden
// in configuration order.
//
// An Orchestrator runs a whole configuration, one scenario at a time, and
// hands each finished scenario to a Sink (the artifact writer) before the
// next capture starts. The browser session behind the Capturer is shared by
// all scenarios, so captures never overlap.
//
// # Failure policy
//
// Failures are recorded, not thrown past the orchestrator:
//
//   - a capture failure or timeout fails its scenario; no golden of that
//     scenario is compared and the batch moves on to the next scenario;
//   - a golden that cannot be read or has the wrong size fails only that
//     comparison; the other goldens of the scenario are still compared;
//   - a write error while persisting fails the affected scenario.
//
// Every Failure names the scenario slug and, where there is one, the golden.
//
// # Usage
//
//	runner := harness.NewRunner(browser, harness.RunnerOptions{
//	    BaseURL:        "http://localhost:9030/test/fidelity/",
//	    GoldensRoot:    "./test/fidelity",
//	    CaptureTimeout: 10 * time.Second,
//	})
//	orch := harness.NewOrchestrator(runner, harness.WithSink(writer))
//	batch, err := orch.Run(ctx, cfg)
package harness
