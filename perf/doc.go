// Package perf runs surge load tests programmatically.
//
// It exposes the same engine the surge command uses: a test configuration is
// compiled into a stage plan, virtual users are ramped through it, and the
// run returns a summary with per-check pass rates, latency percentiles and
// threshold results.
//
// # Quick Start
//
//	cfg, _ := perf.LoadConfig("test.yaml")
//	result, _ := perf.RunTest(context.Background(), cfg)
//
//	fmt.Printf("Iterations: %d\n", result.Summary.Iterations)
//	fmt.Printf("P95: %v\n", result.Summary.Latency.P95)
//	fmt.Printf("Passed: %v\n", result.Passed)
//
// # Custom Test Configuration
//
// Configurations can also be built in code:
//
//	cfg := &perf.TestConfig{
//	    Name: "homepage",
//	    Stages: []perf.StageConfig{
//	        {Duration: "30s", Target: 20},
//	        {Duration: "1m30s", Target: 10},
//	        {Duration: "20s", Target: 0},
//	    },
//	    Request: perf.RequestConfig{Method: "GET", URL: "https://test.example.com/"},
//	    Pacing:  &perf.PacingConfig{Type: "constant", Duration: "1s"},
//	}
//
// # Live Progress
//
// A Runner can be polled while Run is in flight:
//
//	runner, _ := perf.NewRunner(cfg, perf.WithLogger(logger))
//	go func() {
//	    for range time.Tick(time.Second) {
//	        if m := runner.GetMetrics(); m != nil {
//	            fmt.Printf("VUs: %d RPS: %.1f\n", m.ActiveVUs, m.IntervalRPS)
//	        }
//	    }
//	}()
//	result, _ := runner.Run(ctx)
package perf
