package feedback

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is the metadata object persisted alongside (or referencing) the audio blob.
type Record struct {
	AudioID    string   `json:"audioId"`
	AudioURL   string   `json:"audioUrl"`
	TargetURLs []string `json:"freesound_urls"`
	Ratings    []Rating `json:"ratings"`
	CreatedAt  string   `json:"createdAt"`
	IsUpdate   bool     `json:"isUpdate"`
}

// NewRecord builds the metadata record for a submission.
func NewRecord(sub *Submission, audioID, audioURL string, now time.Time) Record {
	return Record{
		AudioID:    audioID,
		AudioURL:   audioURL,
		TargetURLs: sub.TargetURLs(),
		Ratings:    sub.Ratings(),
		CreatedAt:  now.UTC().Format("2006-01-02T15:04:05.000Z"),
		IsUpdate:   sub.IsUpdate(),
	}
}

// Marshal encodes the record as indented JSON.
func (r *Record) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal feedback record: %w", err)
	}
	return data, nil
}

// AudioObjectName names the audio blob for id.
func AudioObjectName(id, extension string) string {
	return fmt.Sprintf("feedback-audio-%s.%s", id, extension)
}

// MetadataObjectName names the metadata blob. Updates get a timestamp suffix
// so the first record for an audio ID is never overwritten.
func MetadataObjectName(id string, update bool, now time.Time) string {
	if update {
		return fmt.Sprintf("feedback-meta-%s-%d.json", id, now.UnixMilli())
	}
	return fmt.Sprintf("feedback-meta-%s.json", id)
}
