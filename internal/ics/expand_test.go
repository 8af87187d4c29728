package ics

import (
	"strings"
	"testing"
	"time"
)

func TestExpandWeeklyRecurrence(t *testing.T) {
	t.Parallel()

	body := wrapCalendar("UID:r1\r\nSUMMARY:Weekly lab\r\nDTSTART:20260302T090000Z\r\nDTEND:20260302T110000Z\r\nRRULE:FREQ=WEEKLY;COUNT=5\r\n")

	res, err := Parse(body, testWindow())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Events) != 5 {
		t.Fatalf("got %d occurrences, want 5", len(res.Events))
	}
	for i, ev := range res.Events {
		wantStart := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC).AddDate(0, 0, 7*i)
		if !ev.Start.Equal(wantStart) {
			t.Errorf("occurrence %d start = %v, want %v", i, ev.Start, wantStart)
		}
		if ev.End.Sub(ev.Start) != 2*time.Hour {
			t.Errorf("occurrence %d lost its duration", i)
		}
	}
}

func TestExpandWindowBoundsInclusive(t *testing.T) {
	t.Parallel()

	// Daily event; window covers exactly three days, both ends inclusive.
	body := wrapCalendar("UID:r2\r\nSUMMARY:Daily\r\nDTSTART:20260302T090000Z\r\nDTEND:20260302T100000Z\r\nRRULE:FREQ=DAILY\r\n")
	window := Window{
		Start: time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC),
	}

	res, err := Parse(body, window)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Events) != 3 {
		t.Fatalf("got %d occurrences, want 3 (closed interval)", len(res.Events))
	}
}

func TestExpandExdateRemovesInstance(t *testing.T) {
	t.Parallel()

	body := wrapCalendar("UID:r3\r\nSUMMARY:With exception\r\nDTSTART:20260302T090000Z\r\nDTEND:20260302T100000Z\r\nRRULE:FREQ=DAILY;COUNT=3\r\nEXDATE:20260303T090000Z\r\n")

	res, err := Parse(body, testWindow())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Events) != 2 {
		t.Fatalf("got %d occurrences, want 2", len(res.Events))
	}
	excluded := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	for _, ev := range res.Events {
		if ev.Start.Equal(excluded) {
			t.Error("EXDATE instance still present")
		}
	}
}

func TestExpandOverrideReplacesInstance(t *testing.T) {
	t.Parallel()

	body := wrapCalendar(
		"UID:r4\r\nSUMMARY:Seminar\r\nDTSTART:20260302T090000Z\r\nDTEND:20260302T100000Z\r\nRRULE:FREQ=DAILY;COUNT=2\r\n",
		"UID:r4\r\nSUMMARY:Seminar (moved)\r\nRECURRENCE-ID:20260303T090000Z\r\nDTSTART:20260303T140000Z\r\nDTEND:20260303T150000Z\r\n",
	)

	res, err := Parse(body, testWindow())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Events) != 2 {
		t.Fatalf("got %d occurrences, want 2", len(res.Events))
	}

	var moved bool
	for _, ev := range res.Events {
		if ev.Title == "Seminar (moved)" {
			moved = true
			if !ev.Start.Equal(time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)) {
				t.Errorf("override start = %v", ev.Start)
			}
		}
	}
	if !moved {
		t.Error("override instance missing")
	}
}

func TestExpandCancelledOverrideDropsInstance(t *testing.T) {
	t.Parallel()

	body := wrapCalendar(
		"UID:r5\r\nSUMMARY:Seminar\r\nDTSTART:20260302T090000Z\r\nDTEND:20260302T100000Z\r\nRRULE:FREQ=DAILY;COUNT=2\r\n",
		"UID:r5\r\nSUMMARY:Seminar\r\nSTATUS:CANCELLED\r\nRECURRENCE-ID:20260303T090000Z\r\nDTSTART:20260303T090000Z\r\nDTEND:20260303T100000Z\r\n",
	)

	res, err := Parse(body, testWindow())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Events) != 1 {
		t.Fatalf("got %d occurrences, want 1", len(res.Events))
	}
	if !res.Events[0].Start.Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("wrong surviving instance: %v", res.Events[0].Start)
	}
}

func TestExpandAllDayRecurrence(t *testing.T) {
	t.Parallel()

	body := wrapCalendar("UID:r6\r\nSUMMARY:Standup week\r\nDTSTART;VALUE=DATE:20260302\r\nRRULE:FREQ=DAILY;COUNT=3\r\n")

	res, err := Parse(body, testWindow())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Events) != 3 {
		t.Fatalf("got %d occurrences, want 3", len(res.Events))
	}
	for _, ev := range res.Events {
		if !ev.AllDay || ev.End.Sub(ev.Start) != 24*time.Hour {
			t.Errorf("occurrence not all-day shaped: %+v", ev)
		}
	}
}

func TestDefaultWindow(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	w := DefaultWindow(now)
	if w.Start != now.AddDate(0, 0, -60) {
		t.Errorf("window start = %v", w.Start)
	}
	if w.End != now.AddDate(0, 0, 180) {
		t.Errorf("window end = %v", w.End)
	}
}

func TestSingleEventsOutsideWindowPreserved(t *testing.T) {
	t.Parallel()

	// The window bounds recurrence materialization only; plain events
	// keep flowing through no matter how far out they fall.
	body := wrapCalendar(
		"UID:o1\r\nSUMMARY:Far future defense\r\nDTSTART:20300101T090000Z\r\nDTEND:20300101T100000Z\r\n",
		"UID:o2\r\nSUMMARY:Old kickoff\r\nDTSTART:20200106T090000Z\r\nDTEND:20200106T100000Z\r\n",
	)

	res, err := Parse(body, testWindow())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.EventErrors) != 0 {
		t.Fatalf("unexpected event errors: %v", res.EventErrors)
	}
	if len(res.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(res.Events))
	}
	if res.Events[0].Title != "Far future defense" || res.Events[1].Title != "Old kickoff" {
		t.Errorf("events lost or reordered: %+v", res.Events)
	}
}

func TestExpandInvalidRRuleCollectedAsEventError(t *testing.T) {
	t.Parallel()

	body := wrapCalendar(
		"UID:bad\r\nSUMMARY:Broken series\r\nDTSTART:20260302T090000Z\r\nDTEND:20260302T100000Z\r\nRRULE:FREQ=BOGUS\r\n",
		"UID:ok\r\nSUMMARY:Plain\r\nDTSTART:20260303T090000Z\r\nDTEND:20260303T100000Z\r\n",
	)

	res, err := Parse(body, testWindow())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.EventErrors) != 1 {
		t.Fatalf("got %d event errors, want 1: %v", len(res.EventErrors), res.EventErrors)
	}
	if !strings.Contains(res.EventErrors[0].Error(), "bad") {
		t.Errorf("error does not name the event: %v", res.EventErrors[0])
	}
	if len(res.Events) != 1 || res.Events[0].Title != "Plain" {
		t.Errorf("healthy event lost: %+v", res.Events)
	}
}
