package feedback

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRecord_Marshal(t *testing.T) {
	sub, err := ParseSubmission(validBody())
	if err != nil {
		t.Fatalf("ParseSubmission: %v", err)
	}
	now := time.Date(2026, 3, 4, 5, 6, 7, 890_000_000, time.UTC)

	rec := NewRecord(&sub, "id-1", "https://blob.example/feedback-audio-id-1.webm", now)
	data, err := rec.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["audioId"] != "id-1" {
		t.Errorf("unexpected audioId %v", decoded["audioId"])
	}
	if decoded["createdAt"] != "2026-03-04T05:06:07.890Z" {
		t.Errorf("unexpected createdAt %v", decoded["createdAt"])
	}
	if decoded["isUpdate"] != false {
		t.Errorf("expected isUpdate=false, got %v", decoded["isUpdate"])
	}
	ratings, ok := decoded["ratings"].([]any)
	if !ok || len(ratings) != 2 || ratings[0] != "like" || ratings[1] != nil {
		t.Errorf("unexpected ratings %v", decoded["ratings"])
	}
}

func TestObjectNames(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	if got := AudioObjectName("abc", "webm"); got != "feedback-audio-abc.webm" {
		t.Errorf("unexpected audio name %q", got)
	}
	if got := MetadataObjectName("abc", false, now); got != "feedback-meta-abc.json" {
		t.Errorf("unexpected metadata name %q", got)
	}
	if got := MetadataObjectName("abc", true, now); got != "feedback-meta-abc-1700000000123.json" {
		t.Errorf("unexpected update metadata name %q", got)
	}
}
