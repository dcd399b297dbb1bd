package feedback

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kailas-cloud/imitune/internal/domain"
)

const testAudioID = "3f2a9c1e-8b4d-4e6f-9a0b-1c2d3e4f5a6b"

func webmDataURL(n int) string {
	return "data:audio/webm;base64," + base64.StdEncoding.EncodeToString(make([]byte, n))
}

func validBody() map[string]any {
	return map[string]any{
		FieldAudioQuery: webmDataURL(1024),
		FieldURLs:       []any{"u1", "u2"},
		FieldRatings:    []any{"like", nil},
	}
}

func assertKind(t *testing.T, err, kind error, wantSubstr string) {
	t.Helper()
	if !errors.Is(err, kind) {
		t.Fatalf("expected %v, got %v", kind, err)
	}
	if !strings.Contains(err.Error(), wantSubstr) {
		t.Errorf("expected message containing %q, got %q", wantSubstr, err.Error())
	}
}

func TestParseSubmission_NewAudio(t *testing.T) {
	sub, err := ParseSubmission(validBody())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.IsUpdate() {
		t.Error("expected new submission")
	}
	if sub.Audio() == nil || len(sub.Audio().Data) != 1024 {
		t.Fatalf("expected 1024 decoded bytes, got %+v", sub.Audio())
	}
	if sub.Audio().ContentType != "audio/webm" {
		t.Errorf("unexpected content type %q", sub.Audio().ContentType)
	}
	if got := sub.Ratings(); got[0] != RatingLike || got[1] != RatingNone {
		t.Errorf("unexpected ratings %v", got)
	}
	if got := sub.TargetURLs(); len(got) != 2 || got[1] != "u2" {
		t.Errorf("unexpected urls %v", got)
	}
}

func TestParseSubmission_Update(t *testing.T) {
	body := validBody()
	delete(body, FieldAudioQuery)
	body[FieldAudioID] = testAudioID

	sub, err := ParseSubmission(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sub.IsUpdate() {
		t.Error("expected update")
	}
	if sub.AudioID() != testAudioID {
		t.Errorf("unexpected audio id %q", sub.AudioID())
	}
	if sub.Audio() != nil {
		t.Error("update must not carry audio")
	}
}

func TestParseSubmission_UpdateSkipsAudioChecks(t *testing.T) {
	body := map[string]any{
		FieldAudioID: testAudioID,
		FieldURLs:    []any{},
		FieldRatings: []any{},
	}
	if _, err := ParseSubmission(body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParseSubmission_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]any)
		want   string
	}{
		{"both audio and id", func(b map[string]any) { b[FieldAudioID] = testAudioID }, "not both"},
		{"no audio", func(b map[string]any) { delete(b, FieldAudioQuery) }, "Missing required fields"},
		{"empty audio", func(b map[string]any) { b[FieldAudioQuery] = "" }, "Missing required fields"},
		{"no urls", func(b map[string]any) { delete(b, FieldURLs) }, "Missing required fields"},
		{"null ratings", func(b map[string]any) { b[FieldRatings] = nil }, "Missing required fields"},
		{"urls not array", func(b map[string]any) { b[FieldURLs] = "u1" }, "must be arrays"},
		{"ratings object", func(b map[string]any) { b[FieldRatings] = map[string]any{"a": 5} }, "must be arrays"},
		{"length mismatch", func(b map[string]any) { b[FieldRatings] = []any{"like"} }, "same length"},
		{"url not string", func(b map[string]any) { b[FieldURLs] = []any{"u1", json.Number("2")} }, "must be a string"},
		{"bad rating", func(b map[string]any) { b[FieldRatings] = []any{"like", "meh"} }, "Each rating"},
		{"numeric rating", func(b map[string]any) { b[FieldRatings] = []any{json.Number("5"), nil} }, "Each rating"},
		{"bad audio id", func(b map[string]any) {
			delete(b, FieldAudioQuery)
			b[FieldAudioID] = "../../etc/passwd"
		}, "valid UUID"},
		{"audio id number", func(b map[string]any) {
			delete(b, FieldAudioQuery)
			b[FieldAudioID] = json.Number("7")
		}, "valid UUID"},
		{"audio not data url", func(b map[string]any) { b[FieldAudioQuery] = "hello" }, "Expected an audio data URL"},
		{"image data url", func(b map[string]any) { b[FieldAudioQuery] = "data:image/png;base64,AAAA" }, "Expected an audio data URL"},
		{"unsupported subtype", func(b map[string]any) { b[FieldAudioQuery] = "data:audio/flac;base64,AAAA" }, "Unsupported audio type"},
		{"no payload", func(b map[string]any) { b[FieldAudioQuery] = "data:audio/wav;base64," }, "no payload"},
		{"no comma", func(b map[string]any) { b[FieldAudioQuery] = "data:audio/wav;base64" }, "no payload"},
		{"not base64 encoded", func(b map[string]any) { b[FieldAudioQuery] = "data:audio/wav,AAAA" }, "base64 encoded"},
		{"corrupt base64", func(b map[string]any) { b[FieldAudioQuery] = "data:audio/wav;base64,!!!!" }, "not valid base64"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			body := validBody()
			tc.mutate(body)
			_, err := ParseSubmission(body)
			assertKind(t, err, domain.ErrValidation, tc.want)
		})
	}
}

func TestParseSubmission_RatingsCheckedBeforeAudio(t *testing.T) {
	body := validBody()
	body[FieldAudioQuery] = "not-a-data-url"
	body[FieldRatings] = []any{"bad", nil}

	_, err := ParseSubmission(body)
	assertKind(t, err, domain.ErrValidation, "Each rating")
}

func TestParseAudio_Formats(t *testing.T) {
	tests := []struct {
		subtype     string
		contentType string
		ext         string
	}{
		{"webm;codecs=opus", "audio/webm", "webm"},
		{"wav", "audio/wav", "wav"},
		{"mp3", "audio/mpeg", "mp3"},
		{"mpeg", "audio/mpeg", "mp3"},
		{"ogg", "audio/ogg", "ogg"},
		{"WEBM", "audio/webm", "webm"},
	}

	for _, tc := range tests {
		t.Run(tc.subtype, func(t *testing.T) {
			a, err := ParseAudio("data:audio/" + tc.subtype + ";base64,AAAA")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.ContentType != tc.contentType || a.Extension != tc.ext {
				t.Errorf("got (%q, %q), want (%q, %q)", a.ContentType, a.Extension, tc.contentType, tc.ext)
			}
			if len(a.Data) != 3 {
				t.Errorf("expected 3 decoded bytes, got %d", len(a.Data))
			}
		})
	}
}

func TestParseAudio_TooLarge(t *testing.T) {
	payload := strings.Repeat("A", 16*1024*1024)
	_, err := ParseAudio("data:audio/webm;base64," + payload)

	estimated := EstimateDecodedSize(payload)
	want := fmt.Sprintf("%.2f MB", float64(estimated)/(1024*1024))
	assertKind(t, err, domain.ErrPayloadTooLarge, want)
	if want != "12.00 MB" {
		t.Errorf("unexpected estimate %s", want)
	}
}

func TestParseAudio_AtCeiling(t *testing.T) {
	// Largest whole-quantum payload whose estimate stays within the ceiling.
	payload := strings.Repeat("A", MaxAudioBytes/3*4+4)
	if EstimateDecodedSize(payload) > MaxAudioBytes {
		payload = payload[:len(payload)-4]
	}
	if _, err := ParseAudio("data:audio/wav;base64," + payload); err != nil {
		t.Fatalf("payload at ceiling rejected: %v", err)
	}
}

func TestEstimateDecodedSize(t *testing.T) {
	if got := EstimateDecodedSize("AAAA"); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
	if got := EstimateDecodedSize(""); got != 0 {
		t.Errorf("expected 0, got %d", got)
	}
}

func TestAudioTooLarge_Message(t *testing.T) {
	err := AudioTooLarge(EstimateDecodedLen(16<<20 + 1))
	assertKind(t, err, domain.ErrPayloadTooLarge, "Audio file too large: 12.00 MB (max 10 MB)")
}

func TestMinBodyBytes_FitsCeilingRecording(t *testing.T) {
	envelope := len(`{"audioData":"data:audio/webm;base64,","ratings":{}}`)
	if MinBodyBytes < MaxAudioBytes*4/3+envelope {
		t.Fatalf("MinBodyBytes %d cannot carry a ceiling-sized recording", MinBodyBytes)
	}
}
