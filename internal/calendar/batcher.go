package calendar

import (
	"context"
	"fmt"
	"time"

	"syncademic/internal/domain"
	appLog "syncademic/internal/log"
)

// batchSize matches the target API's batch dispatch limit.
const batchSize = 50

// BatchResult aggregates the outcome of a batched mutation. Per-item
// failures never abort the batch; they are collected here.
type BatchResult struct {
	SuccessCount int
	Errors       []ItemError
}

func (r BatchResult) HasErrors() bool { return len(r.Errors) > 0 }

func (r BatchResult) AllFailed() bool { return r.SuccessCount == 0 && len(r.Errors) > 0 }

// Merge folds another result into this one.
func (r *BatchResult) Merge(other BatchResult) {
	r.SuccessCount += other.SuccessCount
	r.Errors = append(r.Errors, other.Errors...)
}

// Batcher wraps a Gateway with the batching policy: groups of 50, a
// deadline per group, per-item errors collected without aborting, and
// the authorship safety check on every delete.
//
// Cancellation is the orchestrator's concern: once the apply stage has
// committed its first batch the plan runs to completion, so callers hand
// the batcher a context that outlives the sync's soft deadline.
type Batcher struct {
	gw           Gateway
	batchTimeout time.Duration
}

func NewBatcher(gw Gateway, batchTimeout time.Duration) *Batcher {
	if batchTimeout <= 0 {
		batchTimeout = 15 * time.Second
	}
	return &Batcher{gw: gw, batchTimeout: batchTimeout}
}

// BatchCreate inserts the requests in groups of 50.
func (b *Batcher) BatchCreate(ctx context.Context, profileID string, reqs []WriteRequest) BatchResult {
	var result BatchResult

	for offset := 0; offset < len(reqs); offset += batchSize {
		group := reqs[offset:min(offset+batchSize, len(reqs))]

		groupCtx, cancel := context.WithTimeout(ctx, b.batchTimeout)
		for i, req := range group {
			if err := b.gw.Insert(groupCtx, profileID, req); err != nil {
				result.Errors = append(result.Errors, ItemError{Index: offset + i, Err: err})
				continue
			}
			result.SuccessCount++
		}
		cancel()
	}

	appLog.Info("batch create finished", "profile_id", profileID,
		"succeeded", result.SuccessCount, "failed", len(result.Errors))
	return result
}

// BatchDelete removes the handles in groups of 50, refusing any handle
// whose recorded profile marker does not match. That refusal is the
// core's safety guarantee against touching user-authored events.
func (b *Batcher) BatchDelete(ctx context.Context, profileID string, handles []domain.TargetEventHandle) BatchResult {
	var result BatchResult

	for offset := 0; offset < len(handles); offset += batchSize {
		group := handles[offset:min(offset+batchSize, len(handles))]

		groupCtx, cancel := context.WithTimeout(ctx, b.batchTimeout)
		for i, h := range group {
			if h.SyncProfileID != profileID {
				result.Errors = append(result.Errors, ItemError{
					Index: offset + i,
					Err:   fmt.Errorf("handle %s not owned by profile %s", h.ID, profileID),
				})
				continue
			}
			if err := b.gw.Delete(groupCtx, h); err != nil {
				result.Errors = append(result.Errors, ItemError{Index: offset + i, Err: err})
				continue
			}
			result.SuccessCount++
		}
		cancel()
	}

	appLog.Info("batch delete finished", "profile_id", profileID,
		"succeeded", result.SuccessCount, "failed", len(result.Errors))
	return result
}
