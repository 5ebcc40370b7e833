// Package audithook is a jobq extension that bridges lifecycle events and
// health alerts to an audit trail backend.
//
// Every job hook and both alert hooks emit a structured audit event through
// the [Recorder] interface. Severity is info for normal operations, warning
// for requeues and backlog alerts, and critical for failed jobs and failure
// alerts.
//
//	queue.New(store, queue.WithExtension(audithook.New(audithook.NewLogRecorder(logger))))
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionJobFailed,
//	        audithook.ActionAlertFailure,
//	    ),
//	)
package audithook
