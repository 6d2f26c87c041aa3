// Package logging provides structured logging for foldrun invocations.
//
// Two outputs are used side by side. The structured log is JSON written
// through log/slog to {dir}/foldrun.log and carries the invocation id, run id,
// phase and step of every entry so an interrupted pipeline can be analysed
// after the fact. The console is a line-oriented progress stream in the
// "[2006-01-02 15:04:05] [INFO] message" format used by the pipeline scripts;
// it honours --quiet by dropping INFO lines.
//
// # Basic Usage
//
//	logger, err := logging.NewLoggerWithRotation(".foldrun/logs", "INFO", logging.DefaultRotationConfig())
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	runLogger := logger.WithInvocation(id).WithPhase("prediction").WithRun("standard")
//	runLogger.WithStep("chai-run").Info("step started")
//
// Output:
//
//	{"time":"...","level":"INFO","msg":"step started","invocation_id":"...","phase":"prediction","run_id":"standard","step":"chai-run"}
//
// # Log Rotation
//
// Long prediction campaigns keep appending to the same log. [RotatingWriter]
// rotates the file once it exceeds MaxSizeMB; backups are named
// foldrun.log.1 (newest) to foldrun.log.N and are optionally gzip compressed.
//
// # Testing
//
// Use [NopLogger] to discard structured output and [NewConsole] with a
// bytes.Buffer to capture progress lines.
package logging
