package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"syncademic/internal/domain"
)

// Fingerprinter derives the stable SyncedEventKey for events written
// under one sync profile. The key recognizes prior writes on subsequent
// syncs without any round-tripped state.
type Fingerprinter struct {
	profileID string

	// includeDescription opts the description into the canonical form.
	// Off by default so cosmetic upstream description edits do not churn
	// the target calendar.
	includeDescription bool
}

func NewFingerprinter(profileID string, includeDescription bool) *Fingerprinter {
	return &Fingerprinter{profileID: profileID, includeDescription: includeDescription}
}

// Key returns hex(sha256(profileID || canonical(event))).
func (f *Fingerprinter) Key(ev domain.Event) string {
	h := sha256.New()
	h.Write([]byte(f.profileID))
	h.Write([]byte{0})
	h.Write([]byte(f.canonical(ev)))
	return hex.EncodeToString(h.Sum(nil))
}

// canonical builds the deterministic byte form of an event for keying:
// NFC-normalized trimmed strings, times in UTC rounded to whole seconds.
// Color never participates, so recoloring an already-written event is a
// reconciler no-op; description participates only when configured.
func (f *Fingerprinter) canonical(ev domain.Event) string {
	var b strings.Builder
	b.WriteString(canonicalText(ev.Title))
	b.WriteByte(0)
	b.WriteString(canonicalText(ev.Location))
	b.WriteByte(0)
	if f.includeDescription {
		b.WriteString(canonicalText(ev.Description))
		b.WriteByte(0)
	}
	b.WriteString(canonicalTime(ev.Start))
	b.WriteByte(0)
	b.WriteString(canonicalTime(ev.End))
	b.WriteByte(0)
	b.WriteString(strconv.FormatBool(ev.AllDay))
	return b.String()
}

func canonicalText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func canonicalTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
