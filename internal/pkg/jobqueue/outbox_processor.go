package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/app/models"
	"github.com/ManuelReschke/TranslaFox/app/repository"
)

const (
	DefaultOutboxMaxAttempts = 8
	OutboxBaseBackoff        = 30 * time.Second
	OutboxMaxBackoff         = time.Hour
	// OutboxStaleAfter is how long a row may sit in queued before the relay
	// assumes its job was lost and hands it out again.
	OutboxStaleAfter  = 10 * time.Minute
	OutboxRelayBatch  = 100
	outboxEnqueueConc = 8
	maxLastErrorLen   = 1000
)

// DeliveryOutcome reports what happened to one outbox row.
type DeliveryOutcome string

const (
	DeliveryDelivered DeliveryOutcome = "delivered"
	DeliveryRetry     DeliveryOutcome = "retry"
	DeliveryDead      DeliveryOutcome = "dead"
	DeliverySkipped   DeliveryOutcome = "skipped"
)

// Backoff returns the wait before attempt number attempts+1:
// 30s, 1m, 2m, 4m ... capped at one hour.
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := OutboxBaseBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= OutboxMaxBackoff {
			return OutboxMaxBackoff
		}
	}
	return d
}

// EnqueueOutboxDeliveryJob enqueues delivery of one claimed outbox row
func (q *Queue) EnqueueOutboxDeliveryJob(messageID uint) (*Job, error) {
	payload := OutboxDeliveryJobPayload{MessageID: messageID}
	return q.EnqueueJob(JobTypeOutboxDelivery, payload.ToMap())
}

// processOutboxDeliveryJob hands the row to DeliverOutboxMessage. Delivery
// failures are rescheduled on the row itself, so only storage errors make the
// job fail and retry.
func (q *Queue) processOutboxDeliveryJob(ctx context.Context, job *Job) error {
	payload, err := OutboxDeliveryJobPayloadFromMap(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to parse outbox delivery payload: %w", err)
	}
	if q.deps.DB == nil || q.deps.Deliverer == nil {
		return fmt.Errorf("outbox delivery is not configured")
	}
	_, err = DeliverOutboxMessage(ctx, q.deps.DB, q.deps.Deliverer, payload.MessageID, q.deps.MaxAttempts, time.Now().UTC())
	return err
}

// DeliverOutboxMessage performs one delivery attempt for a queued row. A
// successful call marks it delivered. A failed call bumps attempts and
// schedules the next try with Backoff, or parks the row as dead once
// maxAttempts is reached. Rows that are no longer queued are skipped.
func DeliverOutboxMessage(ctx context.Context, db *gorm.DB, deliverer Deliverer, id uint, maxAttempts int, now time.Time) (DeliveryOutcome, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultOutboxMaxAttempts
	}
	outbox := repository.NewOutboxRepository(db.WithContext(ctx))

	msg, err := outbox.GetByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warnf("[Outbox] Message %d no longer exists", id)
		return DeliverySkipped, nil
	}
	if err != nil {
		return "", fmt.Errorf("load outbox message %d: %w", id, err)
	}
	if msg.Status != models.OUTBOX_STATUS_QUEUED {
		log.Debugf("[Outbox] Message %d is %s, skipping", id, msg.Status)
		return DeliverySkipped, nil
	}

	deliverErr := deliverer.Deliver(ctx, msg)
	if deliverErr == nil {
		if err := outbox.MarkDelivered(msg.ID, now); err != nil {
			return "", fmt.Errorf("mark outbox message %d delivered: %w", msg.ID, err)
		}
		log.Infof("[Outbox] Delivered message %d (%s/%s)", msg.ID, msg.Family, msg.EventType)
		return DeliveryDelivered, nil
	}

	attempts := msg.Attempts + 1
	dead := attempts >= maxAttempts
	next := now.Add(Backoff(attempts))
	lastErr := deliverErr.Error()
	if len(lastErr) > maxLastErrorLen {
		lastErr = lastErr[:maxLastErrorLen]
	}
	if err := outbox.MarkAttemptFailed(msg.ID, attempts, next, lastErr, dead); err != nil {
		return "", fmt.Errorf("record failed attempt for outbox message %d: %w", msg.ID, err)
	}
	if dead {
		log.Errorf("[Outbox] Message %d (%s/%s) is dead after %d attempts: %v", msg.ID, msg.Family, msg.EventType, attempts, deliverErr)
		return DeliveryDead, nil
	}
	log.Warnf("[Outbox] Delivery of message %d failed (attempt %d/%d), next try at %s: %v",
		msg.ID, attempts, maxAttempts, next.Format(time.RFC3339), deliverErr)
	return DeliveryRetry, nil
}

// RelayOutbox recovers rows stuck in queued, claims due rows and hands each
// claimed id to enqueue. A claimed row whose enqueue fails goes back to
// pending on the next stale sweep. Returns how many rows were enqueued.
func RelayOutbox(ctx context.Context, db *gorm.DB, enqueue func(id uint) error, limit int, now time.Time) (int, error) {
	if limit <= 0 {
		limit = OutboxRelayBatch
	}
	outbox := repository.NewOutboxRepository(db.WithContext(ctx))

	if n, err := outbox.RequeueStale(now.Add(-OutboxStaleAfter)); err != nil {
		log.Errorf("[Outbox] Requeue of stale messages failed: %v", err)
	} else if n > 0 {
		log.Warnf("[Outbox] Requeued %d stale messages", n)
	}

	claimed, err := outbox.ClaimDue(now, limit)
	if err != nil && len(claimed) == 0 {
		return 0, fmt.Errorf("claim due outbox messages: %w", err)
	}
	if err != nil {
		log.Errorf("[Outbox] Claim stopped early after %d messages: %v", len(claimed), err)
	}

	var enqueued, failed int
	results := make([]error, len(claimed))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(outboxEnqueueConc)
	for i := range claimed {
		i := i
		g.Go(func() error {
			results[i] = enqueue(claimed[i].ID)
			return nil
		})
	}
	_ = g.Wait()

	for i, rerr := range results {
		if rerr != nil {
			failed++
			log.Errorf("[Outbox] Failed to enqueue message %d: %v", claimed[i].ID, rerr)
			continue
		}
		enqueued++
	}
	if len(claimed) > 0 {
		log.Infof("[Outbox] Relayed %d messages (%d enqueue failures)", enqueued, failed)
	}
	return enqueued, nil
}
