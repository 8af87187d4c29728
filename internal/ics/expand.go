package ics

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"syncademic/internal/domain"
	appLog "syncademic/internal/log"
)

const maxOccurrencesPerEvent = 5000

// Window is the closed interval into which recurring events are
// materialized; both ends are inclusive.
type Window struct {
	Start time.Time
	End   time.Time
}

// DefaultWindow returns the standard materialization window around now:
// 60 days back, 180 days forward.
func DefaultWindow(now time.Time) Window {
	return Window{
		Start: now.AddDate(0, 0, -60),
		End:   now.AddDate(0, 0, 180),
	}
}

// expand materializes parsed events into concrete domain events,
// preserving source order. Only RRULE materialization is bounded by the
// window; plain events pass through wherever they fall, so a far-future
// event is still mirrored and an old one is not deleted as the window
// slides. RECURRENCE-ID overrides replace their base instance; cancelled
// events and instances are omitted.
func expand(parsed []parsedEvent, window Window) ([]domain.Event, []error) {
	var out []domain.Event
	var errs []error

	overridesByUID := make(map[string][]parsedEvent)
	for _, ev := range parsed {
		if ev.IsOverride && ev.RecurrenceID != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		}
	}

	for _, ev := range parsed {
		if ev.IsOverride {
			continue
		}
		if ev.Cancelled {
			continue
		}

		var instances []parsedInstance
		if ev.RawRRule == "" {
			instances = expandSingle(ev, overridesByUID[ev.UID])
		} else {
			var hitCap bool
			var rerr error
			instances, hitCap, rerr = expandRecurring(ev, overridesByUID[ev.UID], window)
			if rerr != nil {
				errs = append(errs, fmt.Errorf("uid %s: %w", ev.UID, rerr))
				continue
			}
			if hitCap {
				appLog.Warn("recurrence expansion truncated", "uid", ev.UID, "cap", maxOccurrencesPerEvent)
			}
		}

		for _, inst := range instances {
			dev, err := toDomainEvent(inst)
			if err != nil {
				errs = append(errs, fmt.Errorf("uid %s: %w", ev.UID, err))
				continue
			}
			out = append(out, dev)
		}
	}

	return out, errs
}

// parsedInstance is one concrete occurrence after override resolution.
type parsedInstance struct {
	ev         parsedEvent
	start, end time.Time
}

func expandSingle(ev parsedEvent, overrides []parsedEvent) []parsedInstance {
	start, end := ev.Start, ev.End
	if o, ok := overrideFor(overrides, start); ok {
		if o.Cancelled {
			return nil
		}
		ev, start, end = o, o.Start, o.End
	}
	return []parsedInstance{{ev: ev, start: start, end: end}}
}

func expandRecurring(ev parsedEvent, overrides []parsedEvent, window Window) ([]parsedInstance, bool, error) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil, false, fmt.Errorf("invalid RRULE %q: %w", ev.RawRRule, err)
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Between works in the event's own location; the window is inclusive
	// of both ends.
	occTimes := set.Between(window.Start.In(ev.Start.Location()), window.End.In(ev.Start.Location()), true)

	hitCap := false
	if len(occTimes) > maxOccurrencesPerEvent {
		occTimes = occTimes[:maxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]parsedInstance, 0, len(occTimes))
	for _, occStart := range occTimes {
		var occEnd time.Time
		if ev.AllDay {
			occStart = time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occEnd = occStart.Add(24 * time.Hour)
		} else {
			occEnd = occStart.Add(dur)
		}

		inst := parsedInstance{ev: ev, start: occStart, end: occEnd}
		if o, ok := overrideFor(overrides, occStart); ok {
			if o.Cancelled {
				continue
			}
			inst = parsedInstance{ev: o, start: o.Start, end: o.End}
		}
		out = append(out, inst)
	}

	return out, hitCap, nil
}

// overrideFor finds an override whose RECURRENCE-ID matches the given
// instance start with exact time equality.
func overrideFor(overrides []parsedEvent, start time.Time) (parsedEvent, bool) {
	for _, ov := range overrides {
		if ov.RecurrenceID != nil && ov.RecurrenceID.Equal(start) {
			return ov, true
		}
	}
	return parsedEvent{}, false
}

func toDomainEvent(inst parsedInstance) (domain.Event, error) {
	ev := domain.Event{
		Title:       strings.TrimSpace(inst.ev.Summary),
		Description: inst.ev.Description,
		Location:    inst.ev.Location,
		Start:       inst.start,
		End:         inst.end,
		AllDay:      inst.ev.AllDay,
	}
	if err := ev.Validate(); err != nil {
		return domain.Event{}, err
	}
	return ev, nil
}
