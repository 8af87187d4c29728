package domain

import (
	"testing"
	"time"
)

func TestParseColor(t *testing.T) {
	t.Parallel()

	if c, err := ParseColor("  Tomato "); err != nil || c != ColorTomato {
		t.Errorf("ParseColor tomato = %q, %v", c, err)
	}
	if _, err := ParseColor("magenta"); err == nil {
		t.Error("magenta accepted")
	}
	if _, err := ParseColor(""); err == nil {
		t.Error("empty color accepted")
	}
}

func TestEventValidate(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		ev     Event
		wantOK bool
	}{
		{
			name:   "valid timed",
			ev:     Event{Title: "Algebra", Start: start, End: start.Add(time.Hour)},
			wantOK: true,
		},
		{
			name:   "blank title",
			ev:     Event{Title: "   ", Start: start, End: start.Add(time.Hour)},
			wantOK: false,
		},
		{
			name:   "start equals end",
			ev:     Event{Title: "Algebra", Start: start, End: start},
			wantOK: false,
		},
		{
			name:   "end before start",
			ev:     Event{Title: "Algebra", Start: start, End: start.Add(-time.Hour)},
			wantOK: false,
		},
		{
			name: "all-day single day",
			ev: Event{Title: "Holiday", AllDay: true,
				Start: start.Truncate(24 * time.Hour), End: start.Truncate(24 * time.Hour).Add(24 * time.Hour)},
			wantOK: true,
		},
		{
			name: "all-day three days",
			ev: Event{Title: "Conference", AllDay: true,
				Start: start.Truncate(24 * time.Hour), End: start.Truncate(24 * time.Hour).Add(72 * time.Hour)},
			wantOK: true,
		},
		{
			name: "all-day partial day",
			ev: Event{Title: "Broken", AllDay: true,
				Start: start.Truncate(24 * time.Hour), End: start.Truncate(24 * time.Hour).Add(25 * time.Hour)},
			wantOK: false,
		},
		{
			name:   "color in palette",
			ev:     Event{Title: "Algebra", Start: start, End: start.Add(time.Hour), Color: ColorPeacock},
			wantOK: true,
		},
		{
			name:   "color out of palette",
			ev:     Event{Title: "Algebra", Start: start, End: start.Add(time.Hour), Color: "magenta"},
			wantOK: false,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.ev.Validate()
			if tc.wantOK && err != nil {
				t.Errorf("rejected: %v", err)
			}
			if !tc.wantOK && err == nil {
				t.Error("accepted")
			}
		})
	}
}

func TestEventEqualAcrossZones(t *testing.T) {
	t.Parallel()

	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}

	utcStart := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	a := Event{Title: "Algebra", Start: utcStart, End: utcStart.Add(time.Hour)}
	b := Event{Title: "Algebra", Start: utcStart.In(paris), End: utcStart.Add(time.Hour).In(paris)}

	if !a.Equal(b) {
		t.Error("same instant in different zones compared unequal")
	}

	c := a
	c.Color = ColorBasil
	if a.Equal(c) {
		t.Error("color difference ignored")
	}
}
