//go:build test
// +build test

package jobqueue

import (
	"time"
)

// TestJobFactory creates test jobs for different types
func TestJobFactory() map[JobType]*Job {
	now := time.Now()

	return map[JobType]*Job{
		JobTypeOutboxDelivery: {
			ID:         "test-outbox-job",
			Type:       JobTypeOutboxDelivery,
			Status:     JobStatusPending,
			Payload:    OutboxDeliveryJobPayload{MessageID: 123}.ToMap(),
			CreatedAt:  now,
			UpdatedAt:  now,
			RetryCount: 0,
			MaxRetries: 3,
		},
		JobTypeDeleteDraft: {
			ID:         "test-draft-job",
			Type:       JobTypeDeleteDraft,
			Status:     JobStatusPending,
			Payload:    DeleteDraftJobPayload{DocumentID: 456}.ToMap(),
			CreatedAt:  now,
			UpdatedAt:  now,
			RetryCount: 0,
			MaxRetries: 3,
		},
	}
}

// WaitForCondition waits for a condition to be true with timeout
func WaitForCondition(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}
