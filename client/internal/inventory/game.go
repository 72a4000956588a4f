package inventory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// InstalledGame is the metadata record of one install directory.
type InstalledGame struct {
	// ID is taken from the install directory name
	ID          int64     `json:"-"`
	DownloadURL string    `json:"downloadUrl"`
	InstallPath string    `json:"installPath"`
	InstalledAt Timestamp `json:"installedAt"`
	Name        string    `json:"name"`
	PublishedAt Timestamp `json:"publishedAt"`
	BasedOn     string    `json:"basedOn"`
}

// Timestamp is written as RFC 3339 and also reads epoch milliseconds, the format of
// metadata files written by older installers.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}

	millis, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp %s: %w", data, err)
	}
	t.Time = time.UnixMilli(millis).UTC()
	return nil
}
