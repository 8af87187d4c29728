package reconcile

import (
	"sort"

	"syncademic/internal/domain"
	appLog "syncademic/internal/log"
)

// Plan is the minimum mutation set that converges the target calendar's
// prior-write set onto the desired set. For identical inputs the plan is
// bytewise identical: both slices are ordered by key ascending.
type Plan struct {
	Creates []domain.Event
	Deletes []domain.TargetEventHandle

	// CreateKeys holds the fingerprint for Creates[i]; the gateway stamps
	// it into extended properties on insert.
	CreateKeys []string
}

// Empty reports whether the plan performs no mutations.
func (p Plan) Empty() bool {
	return len(p.Creates) == 0 && len(p.Deletes) == 0
}

// Diff computes the plan between the prior-write set and the desired
// event set.
//
// Desired events are keyed by fingerprint; key collisions within one
// sync merge later-wins with a warning. A prior handle is deleted when
// its recorded fingerprint no longer appears among desired keys; a
// desired event is created when its key is not among prior fingerprints.
func Diff(fp *Fingerprinter, prior []domain.TargetEventHandle, desired []domain.Event) Plan {
	desiredByKey := make(map[string]domain.Event, len(desired))
	for _, ev := range desired {
		key := fp.Key(ev)
		if _, dup := desiredByKey[key]; dup {
			appLog.Warn("desired events collide on fingerprint, later wins", "key", key, "title", ev.Title)
		}
		desiredByKey[key] = ev
	}

	priorKeys := make(map[string]struct{}, len(prior))
	var plan Plan
	for _, h := range prior {
		priorKeys[h.Fingerprint] = struct{}{}
		if _, ok := desiredByKey[h.Fingerprint]; !ok {
			plan.Deletes = append(plan.Deletes, h)
		}
	}

	createKeys := make([]string, 0, len(desiredByKey))
	for key := range desiredByKey {
		if _, ok := priorKeys[key]; !ok {
			createKeys = append(createKeys, key)
		}
	}
	sort.Strings(createKeys)

	plan.CreateKeys = createKeys
	plan.Creates = make([]domain.Event, 0, len(createKeys))
	for _, key := range createKeys {
		plan.Creates = append(plan.Creates, desiredByKey[key])
	}

	sort.Slice(plan.Deletes, func(i, j int) bool {
		return plan.Deletes[i].Fingerprint < plan.Deletes[j].Fingerprint
	})

	return plan
}

// FullResync produces the plan for a forced full sync: delete every
// prior write, recreate every desired event, regardless of diff.
func FullResync(fp *Fingerprinter, prior []domain.TargetEventHandle, desired []domain.Event) Plan {
	desiredByKey := make(map[string]domain.Event, len(desired))
	for _, ev := range desired {
		key := fp.Key(ev)
		if _, dup := desiredByKey[key]; dup {
			appLog.Warn("desired events collide on fingerprint, later wins", "key", key, "title", ev.Title)
		}
		desiredByKey[key] = ev
	}

	keys := make([]string, 0, len(desiredByKey))
	for key := range desiredByKey {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	plan := Plan{
		Creates:    make([]domain.Event, 0, len(keys)),
		CreateKeys: keys,
		Deletes:    append([]domain.TargetEventHandle(nil), prior...),
	}
	for _, key := range keys {
		plan.Creates = append(plan.Creates, desiredByKey[key])
	}
	sort.Slice(plan.Deletes, func(i, j int) bool {
		return plan.Deletes[i].Fingerprint < plan.Deletes[j].Fingerprint
	})
	return plan
}
