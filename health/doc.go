// Package health watches queue state and raises alerts.
//
// A [Monitor] scans each job type on a fixed interval (or a cron
// [Config.Schedule]) and counts failed and pending jobs within a bounded
// window. When a count is strictly greater than its threshold the monitor
// delivers a [FailureAlert] or [BacklogAlert] to its [AlertSink]. The
// defaults alert above 1000 failed or 100 pending jobs within a window of
// 10000 records; every value is configurable per type.
//
// The monitor only detects. It performs no remediation.
package health
