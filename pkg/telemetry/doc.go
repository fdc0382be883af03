// Package telemetry instruments analysis runs with structured logging
// (zerolog), tracing (OpenTelemetry), metrics (Prometheus) and an in-process
// event publisher.
//
// # Usage
//
// Build a Telemetry from a Config and hand its Observer to the chain:
//
//	cfg := telemetry.DefaultConfig()
//	cfg.Tracing.Enabled = true
//	cfg.Metrics.ListenAddress = ":9464"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//	_ = tel.StartMetricsServer(ctx)
//
//	c := chain.New(
//	    chain.WithLogger(tel.Logger.Zerolog()),
//	    chain.WithObserver(tel.Observer()),
//	)
//
// Each run gets a root span "anl.run" with one child span per lifecycle
// phase ("anl.phase Prepare()" and so on). A phase that does not return OK
// marks its span and the run span as failed.
//
// # Metrics
//
//   - anlchain_runs_started_total{mode}
//   - anlchain_runs_completed_total{status}
//   - anlchain_run_duration_seconds{status}
//   - anlchain_phase_duration_seconds{phase}
//   - anlchain_phase_status_total{phase,status}
//   - anlchain_events_analyzed_total
//   - anlchain_module_analyze_total{module,outcome}
//   - anlchain_gate_rejections_total
//   - anlchain_active_runs, anlchain_chain_modules, anlchain_committed_commands
//
// # Events
//
// The publisher delivers run.started, run.completed, run.failed,
// phase.failed, gate.rejected and parameters.committed events to
// subscribers, optionally through a buffered goroutine:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.Message)
//	}, telemetry.FilterByLevel(telemetry.EventLevelWarning))
package telemetry
