package stream

import (
	"fmt"
	"strings"
)

// Global topics. Entity topics are built with JobTopic and TypeTopic:
//
//	job:<jobID>   one job's lifecycle
//	type:<type>   job events and alerts for one job type
const (
	TopicJobs     = "jobs"
	TopicAlerts   = "alerts"
	TopicFirehose = "firehose"
)

const (
	entityJob  = "job"
	entityType = "type"
)

// JobTopic returns the topic carrying events for jobID.
func JobTopic(jobID string) string { return entityJob + ":" + jobID }

// TypeTopic returns the topic carrying events for jobType.
func TypeTopic(jobType string) string { return entityType + ":" + jobType }

// ValidateTopic rejects anything a subscriber could never receive on.
func ValidateTopic(topic string) error {
	switch topic {
	case TopicJobs, TopicAlerts, TopicFirehose:
		return nil
	}
	entity, key, ok := strings.Cut(topic, ":")
	if !ok || key == "" {
		return fmt.Errorf("stream: invalid topic %q", topic)
	}
	if entity != entityJob && entity != entityType {
		return fmt.Errorf("stream: unknown topic entity %q", entity)
	}
	return nil
}

// topicsFor lists every topic evt is visible on.
func topicsFor(evt *Event) []string {
	out := make([]string, 0, 4)
	out = append(out, TopicFirehose)
	if strings.HasPrefix(string(evt.Type), "alert.") {
		out = append(out, TopicAlerts)
	} else {
		out = append(out, TopicJobs)
	}
	if evt.JobType != "" {
		out = append(out, TypeTopic(evt.JobType))
	}
	if evt.Topic != "" {
		out = append(out, evt.Topic)
	}
	return out
}
