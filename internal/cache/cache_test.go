package cache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"syncademic/internal/bus"
	"syncademic/internal/domain"
)

func testMeta(createdAt time.Time) domain.IcsFileMetadata {
	return domain.IcsFileMetadata{
		SyncProfileID: "prof-1",
		UserID:        "user-1",
		SourceURL:     "https://calendar.example.edu/feed.ics",
		SyncTrigger:   domain.TriggerManual,
		CreatedAt:     createdAt,
	}
}

func TestSaveKeyFormat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := New(NewFileBlobStore(dir))

	createdAt := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	if err := c.Save(context.Background(), []byte("BEGIN:VCALENDAR"), testMeta(createdAt)); err != nil {
		t.Fatalf("Save: %v", err)
	}

	want := "prof-1_2026-03-02T09:30:00Z.ics"
	payload, err := os.ReadFile(filepath.Join(dir, want))
	if err != nil {
		t.Fatalf("entry %s missing: %v", want, err)
	}
	if string(payload) != "BEGIN:VCALENDAR" {
		t.Errorf("payload = %q", payload)
	}

	metaRaw, err := os.ReadFile(filepath.Join(dir, want+".meta.json"))
	if err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
	var meta map[string]string
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		t.Fatalf("sidecar not JSON: %v", err)
	}
	if meta["sourceUrl"] != "https://calendar.example.edu/feed.ics" || meta["syncTrigger"] != "manual" {
		t.Errorf("sidecar = %v", meta)
	}
	if _, ok := meta["parsingError"]; ok {
		t.Error("parsingError present on a clean save")
	}
}

func TestSaveSameSecondGetsSuffix(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := New(NewFileBlobStore(dir))
	createdAt := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if err := c.Save(context.Background(), []byte("payload"), testMeta(createdAt)); err != nil {
			t.Fatalf("Save %d: %v", i, err)
		}
	}

	for _, name := range []string{
		"prof-1_2026-03-02T09:30:00Z.ics",
		"prof-1_2026-03-02T09:30:00Z-1.ics",
		"prof-1_2026-03-02T09:30:00Z-2.ics",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("entry %s missing: %v", name, err)
		}
	}
}

func TestSaveRecordsParsingError(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c := New(NewFileBlobStore(dir))

	meta := testMeta(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC))
	meta.ParsingError = "unterminated VEVENT"
	if err := c.Save(context.Background(), []byte("garbage"), meta); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "prof-1_2026-03-02T09:30:00Z.ics.meta.json"))
	if err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("sidecar not JSON: %v", err)
	}
	if got["parsingError"] != "unterminated VEVENT" {
		t.Errorf("parsingError = %q", got["parsingError"])
	}
}

func TestFileBlobStoreRefusesOverwrite(t *testing.T) {
	t.Parallel()

	s := NewFileBlobStore(t.TempDir())
	if err := s.Put(context.Background(), "a.ics", []byte("one"), nil); err != nil {
		t.Fatalf("first Put: %v", err)
	}
	if err := s.Put(context.Background(), "a.ics", []byte("two"), nil); err == nil {
		t.Fatal("second Put to the same name succeeded")
	}
}

func TestSubscribeToCapturesFetchedPayloads(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	b := bus.New()
	New(NewFileBlobStore(dir)).SubscribeTo(b)

	createdAt := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	b.Publish(domain.IcsFetched{
		SyncProfileID: "prof-1",
		Payload:       []byte("BEGIN:VCALENDAR"),
		Metadata:      testMeta(createdAt),
	})

	if _, err := os.Stat(filepath.Join(dir, "prof-1_2026-03-02T09:30:00Z.ics")); err != nil {
		t.Fatalf("cached entry missing after publish: %v", err)
	}
}
