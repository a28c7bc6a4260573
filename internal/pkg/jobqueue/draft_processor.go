package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/TranslaFox/app/models"
	"github.com/ManuelReschke/TranslaFox/app/repository"
)

const (
	DefaultDraftTTL   = 24 * time.Hour
	DraftSweepBatch   = 100
	draftSweepTimeout = 2 * time.Minute
)

// EnqueueDeleteDraftJob enqueues an asynchronous delete job for an abandoned draft
func (q *Queue) EnqueueDeleteDraftJob(documentID uint, initiatedBy *uint) (*Job, error) {
	payload := DeleteDraftJobPayload{
		DocumentID:    documentID,
		InitiatedByID: initiatedBy,
	}
	return q.EnqueueJob(JobTypeDeleteDraft, payload.ToMap())
}

// processDeleteDraftJob processes the asynchronous delete job
func (q *Queue) processDeleteDraftJob(ctx context.Context, job *Job) error {
	payload, perr := DeleteDraftJobPayloadFromMap(job.Payload)
	if perr != nil {
		return fmt.Errorf("failed to parse delete draft payload: %w", perr)
	}
	if q.deps.DB == nil || q.deps.Drafts == nil {
		return fmt.Errorf("draft deletion is not configured")
	}
	_, err := DeleteDraft(ctx, q.deps.DB, q.deps.Drafts, payload.DocumentID)
	return err
}

// DeleteDraft purges the document if it is still an unpaid draft. The state
// is checked again here because the customer may have started checkout
// between the sweep and the job. Reports whether anything was deleted.
func DeleteDraft(ctx context.Context, db *gorm.DB, drafts DraftPurger, documentID uint) (bool, error) {
	repos := repository.NewRepositories(db.WithContext(ctx))

	doc, err := repos.Document.GetByID(documentID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Infof("[DeleteDraftJob] Document %d not found (already deleted)", documentID)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if doc.Status != models.DOC_STATUS_DRAFT {
		log.Infof("[DeleteDraftJob] Document %d is %s now, keeping it", doc.ID, doc.Status)
		return false, nil
	}
	paid, err := repos.Payment.ExistsForDocument(doc.ID)
	if err != nil {
		return false, err
	}
	if paid {
		log.Infof("[DeleteDraftJob] Document %d has a payment, keeping it", doc.ID)
		return false, nil
	}

	if err := drafts.PurgeDraft(ctx, doc); err != nil {
		return false, fmt.Errorf("failed to purge draft %d: %w", doc.ID, err)
	}
	log.Infof("[DeleteDraftJob] Completed delete for draft %d (%s)", doc.ID, doc.Filename)
	return true, nil
}

// SweepDrafts finds drafts created before now-ttl that never got a payment
// and hands each to enqueue. Returns how many were handed off.
func SweepDrafts(ctx context.Context, db *gorm.DB, ttl time.Duration, limit int, now time.Time, enqueue func(documentID uint) error) (int, error) {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	if limit <= 0 {
		limit = DraftSweepBatch
	}
	stale, err := repository.NewDocumentRepository(db.WithContext(ctx)).ListStaleDrafts(now.Add(-ttl), limit)
	if err != nil {
		return 0, fmt.Errorf("list stale drafts: %w", err)
	}

	n := 0
	for _, doc := range stale {
		if err := enqueue(doc.ID); err != nil {
			log.Errorf("[DraftSweeper] Failed to enqueue delete for draft %d: %v", doc.ID, err)
			continue
		}
		n++
	}
	if n > 0 {
		log.Infof("[DraftSweeper] Scheduled %d abandoned drafts for deletion", n)
	}
	return n, nil
}
