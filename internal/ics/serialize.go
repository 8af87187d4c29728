package ics

import (
	"fmt"

	ical "github.com/arran4/golang-ical"

	"syncademic/internal/domain"
)

// Serialize renders a materialized event stream back into an ICS
// document. Recurrence is already expanded by Parse, so every event
// becomes one plain VEVENT; feeding the output back through Parse yields
// the same stream. Color has no ICS property and is not carried.
func Serialize(events []domain.Event) []byte {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)

	for i, ev := range events {
		ve := cal.AddEvent(fmt.Sprintf("syncademic-%d", i))
		ve.SetSummary(ev.Title)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.AllDay {
			ve.SetAllDayStartAt(ev.Start.UTC())
			ve.SetAllDayEndAt(ev.End.UTC())
		} else {
			ve.SetStartAt(ev.Start.UTC())
			ve.SetEndAt(ev.End.UTC())
		}
	}

	return []byte(cal.Serialize())
}
