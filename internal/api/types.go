package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Message is one entry of a conversation history.
type Message struct {
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient,omitempty"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
}

// Timestamp decodes the time formats the backend is known to produce:
// RFC 3339 strings, "2006-01-02 15:04:05" strings, and epoch numbers in
// seconds or milliseconds.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
}

// msThreshold separates epoch seconds from epoch milliseconds. Epoch seconds
// stay below it until the year 33658.
const msThreshold = 1e12

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			t.Time = fromEpoch(n)
			return nil
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				t.Time = parsed
				return nil
			}
		}
		return fmt.Errorf("unrecognised timestamp %q", s)
	}

	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("unrecognised timestamp %s", data)
	}
	t.Time = fromEpoch(n)
	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339Nano))
}

func fromEpoch(n float64) time.Time {
	if n >= msThreshold {
		return time.UnixMilli(int64(n))
	}
	sec := int64(n)
	return time.Unix(sec, int64((n-float64(sec))*1e9))
}

// LoginResult is the body of a successful login.
type LoginResult struct {
	OK       bool   `json:"ok"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Track is a music search result. It is embedded verbatim in music
// messages, so history playback needs no second lookup.
type Track struct {
	ID      ID       `json:"id"`
	Name    string   `json:"name"`
	Artists []string `json:"artists"`
	PicURL  string   `json:"picUrl,omitempty"`
	IsVIP   bool     `json:"isVip,omitempty"`
}

// ArtistLine joins the artists for display.
func (t Track) ArtistLine() string {
	if len(t.Artists) == 0 {
		return "Unknown artist"
	}
	return strings.Join(t.Artists, " / ")
}

// envelope is the shape shared by every JSON reply.
type envelope struct {
	OK  *bool  `json:"ok"`
	Msg string `json:"msg"`
}

// ID is a backend identifier (track or image). It may arrive as a JSON
// number or string; it is kept as text and written back in its original
// form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}
