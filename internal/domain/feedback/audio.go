package feedback

import (
	"encoding/base64"
	"strings"

	"github.com/kailas-cloud/imitune/internal/domain"
)

// MaxAudioBytes is the decoded audio ceiling.
const MaxAudioBytes = 10 << 20

// MinBodyBytes is the smallest request body ceiling that still lets a
// ceiling-sized recording reach ParseAudio: the base64 payload plus room
// for the ratings and the JSON envelope.
const MinBodyBytes = MaxAudioBytes*4/3 + 256<<10

const (
	dataURLPrefix  = "data:audio/"
	bytesPerMB     = 1024 * 1024
	maxAudioSizeMB = MaxAudioBytes / bytesPerMB
)

type audioFormat struct {
	contentType string
	extension   string
}

// audioFormats maps the accepted MIME subtypes to their stored content type.
var audioFormats = map[string]audioFormat{
	"webm": {contentType: "audio/webm", extension: "webm"},
	"wav":  {contentType: "audio/wav", extension: "wav"},
	"mp3":  {contentType: "audio/mpeg", extension: "mp3"},
	"mpeg": {contentType: "audio/mpeg", extension: "mp3"},
	"ogg":  {contentType: "audio/ogg", extension: "ogg"},
}

// Audio is a decoded recording taken from a data URL.
type Audio struct {
	ContentType string
	Extension   string
	Data        []byte
}

// ParseAudio validates an audio data URL (data:audio/<subtype>[;params];base64,<payload>)
// and decodes its payload. Size is checked on the encoded length before decoding.
func ParseAudio(v any) (Audio, error) {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, dataURLPrefix) {
		return Audio{}, domain.Invalid("Invalid audio format. Expected an audio data URL")
	}

	header, payload, found := strings.Cut(s[len("data:"):], ",")
	mediaType, params, _ := strings.Cut(header, ";")
	subtype := strings.ToLower(strings.TrimPrefix(mediaType, "audio/"))

	format, ok := audioFormats[subtype]
	if !ok {
		return Audio{}, domain.Invalid("Unsupported audio type: audio/%s", subtype)
	}

	if !found || payload == "" {
		return Audio{}, domain.Invalid("Audio data URL has no payload")
	}

	if estimated := EstimateDecodedSize(payload); estimated > MaxAudioBytes {
		return Audio{}, AudioTooLarge(estimated)
	}

	if !hasBase64Param(params) {
		return Audio{}, domain.Invalid("Audio data URL must be base64 encoded")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Audio{}, domain.Invalid("Audio payload is not valid base64")
	}

	return Audio{
		ContentType: format.contentType,
		Extension:   format.extension,
		Data:        data,
	}, nil
}

// EstimateDecodedSize returns the upper-bound decoded size of a base64 payload.
func EstimateDecodedSize(payload string) int {
	return EstimateDecodedLen(int64(len(payload)))
}

// EstimateDecodedLen is EstimateDecodedSize for an encoded length.
func EstimateDecodedLen(n int64) int {
	return int(n * 3 / 4)
}

// AudioTooLarge builds the 413 rejection reporting the estimated decoded size.
func AudioTooLarge(estimated int) error {
	return domain.TooLarge("Audio file too large: %.2f MB (max %d MB)", float64(estimated)/bytesPerMB, maxAudioSizeMB)
}

func hasBase64Param(params string) bool {
	for _, p := range strings.Split(params, ";") {
		if strings.EqualFold(strings.TrimSpace(p), "base64") {
			return true
		}
	}
	return false
}
