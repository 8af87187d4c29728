package domain

import (
	"errors"
	"strings"
	"time"
)

// Color is a named calendar color from the closed target-calendar palette.
type Color string

const (
	ColorLavender  Color = "lavender"
	ColorSage      Color = "sage"
	ColorGrape     Color = "grape"
	ColorFlamingo  Color = "flamingo"
	ColorBanana    Color = "banana"
	ColorTangerine Color = "tangerine"
	ColorPeacock   Color = "peacock"
	ColorGraphite  Color = "graphite"
	ColorBlueberry Color = "blueberry"
	ColorBasil     Color = "basil"
	ColorTomato    Color = "tomato"
)

var palette = map[Color]struct{}{
	ColorLavender: {}, ColorSage: {}, ColorGrape: {}, ColorFlamingo: {},
	ColorBanana: {}, ColorTangerine: {}, ColorPeacock: {}, ColorGraphite: {},
	ColorBlueberry: {}, ColorBasil: {}, ColorTomato: {},
}

// IsValid reports whether the color is part of the palette.
func (c Color) IsValid() bool {
	_, ok := palette[c]
	return ok
}

// ParseColor maps a wire string onto the palette.
func ParseColor(s string) (Color, error) {
	c := Color(strings.ToLower(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", errors.New("unknown calendar color: " + s)
	}
	return c, nil
}

// Event is the canonical in-memory calendar event flowing through the
// pipeline. It is value-typed: two events are equal iff all attributes
// match. Stages hand events downstream by value and never mutate a
// received slice.
type Event struct {
	Title       string
	Description string
	Location    string

	// Start / End carry their own timezone; Start < End always.
	Start time.Time
	End   time.Time

	AllDay bool

	// Color is empty when the event keeps the calendar default.
	Color Color
}

// Validate enforces the event invariants. An all-day event spans whole
// days; the single-day sentinel is End = Start + 24h.
func (e Event) Validate() error {
	if strings.TrimSpace(e.Title) == "" {
		return errors.New("event title is empty")
	}
	if !e.Start.Before(e.End) {
		return errors.New("event start must be before end")
	}
	if e.AllDay && e.End.Sub(e.Start)%(24*time.Hour) != 0 {
		return errors.New("all-day event must span whole days")
	}
	if e.Color != "" && !e.Color.IsValid() {
		return errors.New("event color not in palette")
	}
	return nil
}

// Equal compares all attributes, using time.Time.Equal for instants so
// that the same instant in different zones still matches.
func (e Event) Equal(o Event) bool {
	return e.Title == o.Title &&
		e.Description == o.Description &&
		e.Location == o.Location &&
		e.Start.Equal(o.Start) &&
		e.End.Equal(o.End) &&
		e.AllDay == o.AllDay &&
		e.Color == o.Color
}
