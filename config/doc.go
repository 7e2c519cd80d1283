// Package config loads taskflow settings from defaults, an optional YAML
// file and TASKFLOW_ environment variables, in increasing precedence.
//
// Nested keys map to variables by upper-casing and replacing dots with
// underscores, so task.max_retry is read from TASKFLOW_TASK_MAX_RETRY.
package config
