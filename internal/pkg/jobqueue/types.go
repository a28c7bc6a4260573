package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeOutboxDelivery JobType = "outbox_delivery"
	JobTypeDeleteDraft    JobType = "delete_draft"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// OutboxDeliveryJobPayload points a delivery job at one outbox row. The row
// itself carries the request body so the job stays small.
type OutboxDeliveryJobPayload struct {
	MessageID uint `json:"message_id"`
}

// ToMap converts the payload to a map for storage
func (p OutboxDeliveryJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"message_id": p.MessageID,
	}
}

// OutboxDeliveryJobPayloadFromMap creates a payload from a map
func OutboxDeliveryJobPayloadFromMap(data map[string]interface{}) (*OutboxDeliveryJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload OutboxDeliveryJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// DeleteDraftJobPayload contains payload for removing an abandoned draft and its stored file
type DeleteDraftJobPayload struct {
	DocumentID    uint  `json:"document_id"`
	InitiatedByID *uint `json:"initiated_by_id,omitempty"`
}

func (p DeleteDraftJobPayload) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"document_id": p.DocumentID,
	}
	if p.InitiatedByID != nil {
		m["initiated_by_id"] = *p.InitiatedByID
	}
	return m
}

func DeleteDraftJobPayloadFromMap(data map[string]interface{}) (*DeleteDraftJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var payload DeleteDraftJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
