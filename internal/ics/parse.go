package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"syncademic/internal/domain"
	appLog "syncademic/internal/log"
)

// parsedEvent is the intermediate representation of a VEVENT before
// recurrence expansion.
type parsedEvent struct {
	UID string

	Summary     string
	Description string
	Location    string

	Start  time.Time
	End    time.Time
	AllDay bool

	RawRRule     string
	ExDates      []time.Time
	RecurrenceID *time.Time // RECURRENCE-ID (if present)
	IsOverride   bool
	Cancelled    bool // STATUS:CANCELLED

	srcIndex int // position in the source document
}

// Result is the outcome of parsing one ICS payload: the materialized
// events in source order plus the per-event errors that were collected
// rather than treated as fatal.
type Result struct {
	Events      []domain.Event
	EventErrors []error
}

// Parse parses an ICS payload and materializes recurring events into
// concrete instances within the given window.
//
//   - An unparseable root document returns an IcsMalformed sync error.
//   - Individual VEVENT problems are collected into Result.EventErrors.
//   - VTIMEZONE/TZID resolution happens per property; floating times
//     without a TZID are interpreted as UTC.
///   - Events with STATUS:CANCELLED are omitted.
//   - Duplicate UIDs are kept as separate events; dedupe is the
//     reconciler's job.
func Parse(body []byte, window Window) (Result, error) {
	var res Result

	if len(body) == 0 {
		return res, domain.NewSyncError(domain.ErrIcsMalformed, "parse", errors.New("empty ICS body"))
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return res, domain.NewSyncError(domain.ErrIcsMalformed, "parse", err)
	}

	parsed := make([]parsedEvent, 0)
	for i, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			res.EventErrors = append(res.EventErrors, fmt.Errorf("vevent %d: %w", i, perr))
			continue
		}
		ev.srcIndex = i
		parsed = append(parsed, ev)
	}

	events, expandErrs := expand(parsed, window)
	res.Events = events
	res.EventErrors = append(res.EventErrors, expandErrs...)

	appLog.Info("ics parse completed", "event_count", len(res.Events), "event_errors", len(res.EventErrors))
	return res, nil
}

func parseVEvent(ve *ical.VEvent) (parsedEvent, error) {
	var out parsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	if p := ve.GetProperty("STATUS"); p != nil {
		out.Cancelled = strings.EqualFold(strings.TrimSpace(p.Value), "CANCELLED")
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return out, errors.New("missing DTSTART")
	}
	start, allDay, err := parsePropertyTime(dtStart)
	if err != nil {
		return out, fmt.Errorf("DTSTART: %w", err)
	}
	out.Start = start
	out.AllDay = allDay

	end, err := parseEventEnd(ve, start, allDay)
	if err != nil {
		return out, err
	}
	out.End = end

	if !out.Start.Before(out.End) {
		return out, fmt.Errorf("start %s not before end %s", out.Start, out.End)
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	// EXDATE can appear multiple times and carry comma-separated values.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, _, err := parseTimeValue(part, propertyLocation(p)); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if p := ve.GetProperty("RECURRENCE-ID"); p != nil {
		if t, _, err := parsePropertyTime(p); err == nil {
			out.RecurrenceID = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// parseEventEnd resolves DTEND, falling back to DURATION, then to the
// all-day sentinel of one full day. A timed event with neither DTEND nor
// DURATION is a per-event error.
func parseEventEnd(ve *ical.VEvent, start time.Time, allDay bool) (time.Time, error) {
	if p := ve.GetProperty(ical.ComponentPropertyDtEnd); p != nil && p.Value != "" {
		// Multi-day all-day events keep their DTEND; the one-day
		// sentinel only applies when DTEND is absent.
		end, _, err := parsePropertyTime(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("DTEND: %w", err)
		}
		return end, nil
	}

	if p := ve.GetProperty("DURATION"); p != nil && p.Value != "" {
		d, err := parseICSDuration(p.Value)
		if err != nil {
			return time.Time{}, fmt.Errorf("DURATION: %w", err)
		}
		return start.Add(d), nil
	}

	if allDay {
		return start.Add(24 * time.Hour), nil
	}
	return time.Time{}, errors.New("missing DTEND and DURATION")
}

// parsePropertyTime parses a DTSTART/DTEND/RECURRENCE-ID property,
// honoring VALUE=DATE and TZID parameters. The bool result reports the
// date-only (all-day) form.
func parsePropertyTime(p *ical.IANAProperty) (time.Time, bool, error) {
	return parseTimeValue(p.Value, propertyLocation(p))
}

// propertyLocation resolves the TZID parameter into a *time.Location,
// returning UTC when absent or unknown. Unknown zone names are logged
// once per occurrence; falling back to UTC keeps the event rather than
// dropping it.
func propertyLocation(p *ical.IANAProperty) *time.Location {
	if p.ICalParameters == nil {
		return time.UTC
	}
	tzs, ok := p.ICalParameters["TZID"]
	if !ok || len(tzs) == 0 || tzs[0] == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(tzs[0])
	if err != nil {
		appLog.Warn("ics unknown TZID, assuming UTC", "tzid", tzs[0])
		return time.UTC
	}
	return loc
}

// parseTimeValue parses a raw ICS date or date-time value.
//
//   - 20250101           all-day date (midnight in loc)
//   - 20250101T090000Z   UTC instant
//   - 20250101T090000    floating or TZID-qualified local time; without a
//     TZID this is interpreted as UTC.
func parseTimeValue(v string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}

	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	}
	if strings.Contains(v, "T") {
		t, err := time.ParseInLocation("20060102T150405", v, loc)
		return t, false, err
	}
	t, err := time.ParseInLocation("20060102", v, loc)
	return t, true, err
}

// parseICSDuration parses an RFC 5545 duration (subset: weeks, days,
// hours, minutes, seconds; no negative durations).
func parseICSDuration(v string) (time.Duration, error) {
	s := strings.TrimSpace(v)
	if s == "" || s[0] == '-' {
		return 0, fmt.Errorf("unsupported duration %q", v)
	}
	s = strings.TrimPrefix(s, "+")
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	num := 0
	haveNum := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int(r-'0')
			haveNum = true
		case r == 'T':
			inTime = true
		case r == 'W' && haveNum:
			total += time.Duration(num) * 7 * 24 * time.Hour
			num, haveNum = 0, false
		case r == 'D' && haveNum:
			total += time.Duration(num) * 24 * time.Hour
			num, haveNum = 0, false
		case r == 'H' && haveNum && inTime:
			total += time.Duration(num) * time.Hour
			num, haveNum = 0, false
		case r == 'M' && haveNum && inTime:
			total += time.Duration(num) * time.Minute
			num, haveNum = 0, false
		case r == 'S' && haveNum && inTime:
			total += time.Duration(num) * time.Second
			num, haveNum = 0, false
		default:
			return 0, fmt.Errorf("invalid duration %q", v)
		}
	}
	if haveNum {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return total, nil
}
