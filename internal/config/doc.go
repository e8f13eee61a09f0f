// Package config provides environment-driven configuration for the
// benchmark CLI.
//
// Every knob is read from XSSBENCH_* environment variables with working
// defaults, and CLI flags override the environment.
//
// Environment Variables:
//   - XSSBENCH_BROWSER, XSSBENCH_TIMEOUT_MS, XSSBENCH_WORKERS
//   - XSSBENCH_FAIL_FAST, XSSBENCH_WATCHDOG_STALL_MS, XSSBENCH_PROGRESS_EVERY
//   - XSSBENCH_VECTORS, XSSBENCH_JSON_OUT, XSSBENCH_WORK_DIR
//   - XSSBENCH_LOG_LEVEL, XSSBENCH_LOG_DEV
package config
