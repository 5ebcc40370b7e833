package redis

// Redis key naming conventions. Every key carries the store prefix
// (default "jobq:") to avoid collisions.

const defaultPrefix = "jobq:"

// jobKey returns the Hash key for a job: {prefix}job:{id}
func (s *Store) jobKey(id string) string { return s.prefix + "job:" + id }

// indexKey returns the Sorted Set key indexing jobs of one type and status:
// {prefix}idx:{type}:{status}
func (s *Store) indexKey(jobType, status string) string {
	return s.prefix + "idx:" + jobType + ":" + status
}

// seqKey is the counter that orders inserts.
func (s *Store) seqKey() string { return s.prefix + "seq" }

// finishedKey is the Sorted Set of terminal job IDs scored by finish time
// in unix milliseconds.
func (s *Store) finishedKey() string { return s.prefix + "finished" }
