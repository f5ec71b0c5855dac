// Package harness runs conformance scenarios against the real engine.
//
// A scenario is a YAML file naming a pipeline definition, the files its
// input nodes read, and what the run must produce: whether validation
// passes, each node's final state, the validation failures, and extra
// assertions over the event trace and the guarantee sets.
//
// Every scenario runs with one worker, a fixed run id and a fresh
// in-memory ledger, so its trace is the same on every machine and can be
// compared against a golden file:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/cluster.yaml")
//	if err != nil {
//	    t.Fatal(err)
//	}
//	if err := harness.RunWithGolden(t, scenario); err != nil {
//	    t.Fatal(err)
//	}
//
// To regenerate golden files:
//
//	go test ./internal/harness -update
package harness
