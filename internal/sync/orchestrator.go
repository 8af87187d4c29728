package sync

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	mathrand "math/rand"
	"time"

	"syncademic/internal/auth"
	"syncademic/internal/bus"
	"syncademic/internal/calendar"
	"syncademic/internal/config"
	"syncademic/internal/domain"
	"syncademic/internal/ics"
	appLog "syncademic/internal/log"
	"syncademic/internal/reconcile"
	"syncademic/internal/rules"
	"syncademic/internal/store"
)

// State is the terminal state of one sync attempt. The profile status
// only distinguishes success/failed; succeededWithErrors maps onto
// success with an error message recorded.
type State string

const (
	StateSucceeded           State = "succeeded"
	StateSucceededWithErrors State = "succeeded_with_errors"
	StateFailed              State = "failed"
	StateCancelled           State = "cancelled"
)

// Request describes one sync attempt.
type Request struct {
	ProfileID string
	Trigger   domain.SyncTrigger
	Type      domain.SyncType
}

// Outcome is the result handed to callers (CLI, scheduler) and shared
// between singleflighted callers.
type Outcome struct {
	State   State
	Kind    domain.ErrorKind // set for failed/cancelled and partial failures
	Created int
	Deleted int
	Err     error
	Shared  bool // true when this outcome came from another caller's run
}

// Orchestrator drives the fetch → parse → transform → reconcile → apply
// pipeline for sync profiles. It is the only component that writes
// profile status.
type Orchestrator struct {
	cfg      *config.Config
	profiles store.ProfileStore
	usage    store.UsageStore
	auth     *auth.Provider
	fetcher  *ics.Fetcher
	gateway  calendar.Gateway
	bus      *bus.Bus

	flight *flightGroup

	// test seams
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(d time.Duration) time.Duration
}

func NewOrchestrator(cfg *config.Config, profiles store.ProfileStore, usage store.UsageStore,
	authProvider *auth.Provider, fetcher *ics.Fetcher, gateway calendar.Gateway, b *bus.Bus) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		profiles: profiles,
		usage:    usage,
		auth:     authProvider,
		fetcher:  fetcher,
		gateway:  gateway,
		bus:      b,
		flight:   newFlightGroup(),
		now:      time.Now,
		sleep:    sleepCtx,
		jitter:   defaultJitter,
	}
}

// Sync runs one sync attempt for the profile, deduplicating concurrent
// calls per profile id: a second caller awaits the first's outcome.
func (o *Orchestrator) Sync(ctx context.Context, req Request) Outcome {
	if req.Type == "" {
		req.Type = domain.SyncRegular
	}
	if req.Trigger == "" {
		req.Trigger = domain.TriggerManual
	}

	out, shared := o.flight.do(req.ProfileID, func() Outcome {
		return o.run(ctx, req)
	})
	out.Shared = shared
	return out
}

// run executes the full state machine for one attempt.
func (o *Orchestrator) run(ctx context.Context, req Request) Outcome {
	correlation := newCorrelationID()
	ctx, cancel := context.WithTimeout(ctx, o.cfg.SyncTimeout)
	defer cancel()

	profile, err := o.profiles.GetProfile(ctx, req.ProfileID)
	if err != nil {
		// No profile document to write a terminal status onto.
		return Outcome{State: StateFailed, Kind: domain.ErrSourceInvalid, Err: err}
	}

	appLog.Info("sync starting", "profile_id", profile.ID, "user_id", profile.UserID,
		"trigger", req.Trigger, "type", req.Type, "correlation", correlation)

	// admitting: ruleset validity, then quota. A malformed ruleset or an
	// exhausted quota fails before any fetch.
	engine, serr := o.admitRuleset(profile)
	if serr != nil {
		return o.fail(ctx, profile, correlation, serr)
	}
	if serr := o.admitQuota(ctx, profile); serr != nil {
		return o.fail(ctx, profile, correlation, serr)
	}

	// Authorization must be live before we touch the target calendar.
	if _, err := o.auth.AccessToken(ctx, profile.UserID); err != nil {
		return o.fail(ctx, profile, correlation, err)
	}

	// fetching: profile goes inProgress at entry; lastSyncAt on success
	// is this instant, so freshness is measured against the source.
	fetchStart := o.now()
	if err := o.profiles.UpdateStatus(ctx, profile.ID, store.StatusUpdate{
		Status:        domain.StatusInProgress,
		SyncStartedAt: &fetchStart,
	}); err != nil {
		return Outcome{State: StateFailed, Kind: domain.ErrSourceInvalid, Err: err}
	}

	payload, serr := o.fetchWithRetry(ctx, profile.SourceURL)
	if serr != nil {
		return o.fail(ctx, profile, correlation, serr)
	}

	// Published before parsing so the cache observer captures even
	// payloads that turn out to be unparseable.
	o.bus.Publish(domain.IcsFetched{
		EventMeta:     domain.EventMeta{Correlation: correlation, At: o.now()},
		SyncProfileID: profile.ID,
		Payload:       payload,
		Metadata: domain.IcsFileMetadata{
			SyncProfileID: profile.ID,
			UserID:        profile.UserID,
			SourceURL:     profile.SourceURL,
			SyncTrigger:   req.Trigger,
			CreatedAt:     fetchStart,
		},
	})

	// parsing
	parsed, err := ics.Parse(payload, ics.DefaultWindow(o.now()))
	if err != nil {
		// Re-publish the payload with the failure recorded so the cache
		// entry for this fetch explains why the sync died.
		o.bus.Publish(domain.IcsFetched{
			EventMeta:     domain.EventMeta{Correlation: correlation, At: o.now()},
			SyncProfileID: profile.ID,
			Payload:       payload,
			Metadata: domain.IcsFileMetadata{
				SyncProfileID: profile.ID,
				UserID:        profile.UserID,
				SourceURL:     profile.SourceURL,
				SyncTrigger:   req.Trigger,
				CreatedAt:     fetchStart,
				ParsingError:  err.Error(),
			},
		})
		return o.fail(ctx, profile, correlation, err)
	}
	for _, perr := range parsed.EventErrors {
		appLog.Warn("skipped unparseable event", "profile_id", profile.ID, "reason", perr.Error())
	}

	// transforming
	desired := parsed.Events
	if engine != nil {
		desired = engine.Apply(desired)
	}

	// reconciling
	prior, err := o.gateway.ListWrittenEvents(ctx, profile.ID)
	if err != nil {
		return o.fail(ctx, profile, correlation,
			domain.NewSyncError(domain.ErrTargetRejected, "gateway.list", err))
	}

	fp := reconcile.NewFingerprinter(profile.ID, o.cfg.FingerprintDescription)
	var plan reconcile.Plan
	if req.Type == domain.SyncFull {
		plan = reconcile.FullResync(fp, prior, desired)
	} else {
		plan = reconcile.Diff(fp, prior, desired)
	}

	appLog.Info("sync plan computed", "profile_id", profile.ID,
		"creates", len(plan.Creates), "deletes", len(plan.Deletes), "full", req.Type == domain.SyncFull)

	// applying. Cancellation is checked once at entry; after the first
	// batch commits the plan runs to completion so the target calendar
	// and the profile status stay consistent.
	if ctx.Err() != nil {
		return o.fail(ctx, profile, correlation,
			domain.NewSyncError(domain.ErrCancelled, "apply", ctx.Err()))
	}

	applyCtx := context.WithoutCancel(ctx)
	batcher := calendar.NewBatcher(o.gateway, o.cfg.BatchTimeout)

	// Deletes go first so a full resync never doubles events mid-apply.
	deleteRes := batcher.BatchDelete(applyCtx, profile.ID, plan.Deletes)

	reqs := make([]calendar.WriteRequest, len(plan.Creates))
	for i := range plan.Creates {
		reqs[i] = calendar.WriteRequest{Event: plan.Creates[i], Fingerprint: plan.CreateKeys[i]}
	}
	createRes := batcher.BatchCreate(applyCtx, profile.ID, reqs)

	result := deleteRes
	result.Merge(createRes)

	if result.AllFailed() {
		return o.fail(ctx, profile, correlation,
			domain.NewSyncError(domain.ErrTargetRejected, "apply",
				fmt.Errorf("all %d mutations rejected", len(result.Errors))))
	}

	// succeeded / succeeded_with_errors
	lastSync := fetchStart
	upd := store.StatusUpdate{Status: domain.StatusSuccess, LastSyncAt: &lastSync}
	state := StateSucceeded
	var kind domain.ErrorKind
	if result.HasErrors() {
		state = StateSucceededWithErrors
		kind = domain.ErrTargetRejected
		upd.ErrorMessage = domain.ErrTargetRejected.UserMessage()
		for _, ie := range result.Errors {
			appLog.Warn("batch item rejected", "profile_id", profile.ID, "item", ie.Error())
		}
	}
	if err := o.profiles.UpdateStatus(applyCtx, profile.ID, upd); err != nil {
		appLog.Error("failed to record sync success", err, "profile_id", profile.ID)
	}

	appLog.Info("sync finished", "profile_id", profile.ID, "state", state,
		"creates", len(plan.Creates), "deletes", len(plan.Deletes), "item_errors", len(result.Errors))

	return Outcome{
		State:   state,
		Kind:    kind,
		Created: createRes.SuccessCount,
		Deleted: deleteRes.SuccessCount,
	}
}

// admitRuleset decodes and compiles the profile's ruleset, if any.
func (o *Orchestrator) admitRuleset(profile domain.SyncProfile) (*rules.Engine, error) {
	if profile.RulesetJSON == "" {
		return nil, nil
	}
	rs, err := rules.ParseRuleset(profile.RulesetJSON, rules.Limits{
		MaxRules:                o.cfg.MaxRules,
		MaxConditions:           o.cfg.MaxConditions,
		MaxActions:              o.cfg.MaxActions,
		MaxNestingDepth:         o.cfg.MaxNestingDepth,
		MaxTextFieldValueLength: o.cfg.MaxTextFieldValueLength,
	})
	if err != nil {
		return nil, err
	}
	return rules.Compile(rs)
}

// admitQuota rejects the sync when the user's daily counter has reached
// the limit, and counts this attempt otherwise.
func (o *Orchestrator) admitQuota(ctx context.Context, profile domain.SyncProfile) error {
	today := o.now()
	count, err := o.usage.SyncsToday(ctx, profile.UserID, today)
	if err != nil {
		// An unreadable usage store is infrastructure trouble, not the
		// user hitting the limit. Left untyped it stays retriable and
		// never shows the quota message.
		return fmt.Errorf("read sync usage: %w", err)
	}
	if count >= o.cfg.DailySyncLimit {
		return domain.NewSyncError(domain.ErrQuotaExceeded, "admission",
			fmt.Errorf("user %s at %d/%d syncs today", profile.UserID, count, o.cfg.DailySyncLimit))
	}
	if _, err := o.usage.IncrSyncsToday(ctx, profile.UserID, today); err != nil {
		appLog.Error("failed to record sync usage", err, "user_id", profile.UserID)
	}
	return nil
}

// fetchWithRetry fetches the source, retrying retriable failures with
// exponential backoff 1s/2s/4s plus ±25% jitter.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, url string) ([]byte, error) {
	backoffs := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}

	payload, err := o.fetcher.Fetch(ctx, url)
	for attempt := 0; err != nil && attempt < len(backoffs); attempt++ {
		var se *domain.SyncError
		if !errors.As(err, &se) || !se.Retriable() {
			return nil, err
		}
		delay := o.jitter(backoffs[attempt])
		appLog.Warn("fetch failed, retrying", "attempt", attempt+1, "delay", delay, "reason", err.Error())
		if serr := o.sleep(ctx, delay); serr != nil {
			return nil, domain.NewSyncError(domain.ErrCancelled, "fetch", serr)
		}
		payload, err = o.fetcher.Fetch(ctx, url)
	}
	return payload, err
}

// fail records the terminal failure on the profile and publishes
// SyncFailed. Cancelled syncs end as failed with the Cancelled message.
func (o *Orchestrator) fail(ctx context.Context, profile domain.SyncProfile, correlation string, err error) Outcome {
	kind := domain.KindOf(err)
	appLog.Error("sync failed", err, "profile_id", profile.ID, "kind", kind, "correlation", correlation)

	// The status write must survive the sync context's cancellation.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if uerr := o.profiles.UpdateStatus(writeCtx, profile.ID, store.StatusUpdate{
		Status:       domain.StatusFailed,
		ErrorMessage: kind.UserMessage(),
	}); uerr != nil {
		appLog.Error("failed to record sync failure", uerr, "profile_id", profile.ID)
	}

	o.bus.Publish(domain.SyncFailed{
		EventMeta:     domain.EventMeta{Correlation: correlation, At: o.now()},
		SyncProfileID: profile.ID,
		Reason:        kind.UserMessage(),
	})

	state := StateFailed
	if kind == domain.ErrCancelled {
		state = StateCancelled
	}
	return Outcome{State: state, Kind: kind, Err: err}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func defaultJitter(d time.Duration) time.Duration {
	// ±25%
	delta := time.Duration(mathrand.Int63n(int64(d) / 2))
	return d - d/4 + delta
}

func newCorrelationID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "corr-unknown"
	}
	return hex.EncodeToString(b[:])
}
