package audithook

// Audit event actions. Each constant corresponds to one ext hook and becomes
// the Action field of the audit event.
const (
	ActionJobEnqueued  = "job.enqueued"
	ActionJobRequeued  = "job.requeued"
	ActionJobStarted   = "job.started"
	ActionJobCompleted = "job.completed"
	ActionJobFailed    = "job.failed"
	ActionAlertFailure = "alert.failure"
	ActionAlertBacklog = "alert.backlog"
)

// Audit event categories group related actions.
const (
	CategoryJob   = "jobq.job"
	CategoryAlert = "jobq.alert"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceJob     = "job"
	ResourceJobType = "job_type"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionJobEnqueued,
		ActionJobRequeued,
		ActionJobStarted,
		ActionJobCompleted,
		ActionJobFailed,
		ActionAlertFailure,
		ActionAlertBacklog,
	}
}
