package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayouts перечисляет форматы, в которых бэкенд отдает даты
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Timestamp представляет момент времени, допускающий даты без часового пояса
type Timestamp struct {
	time.Time
}

// UnmarshalJSON разбирает строку даты; даты без пояса считаются UTC
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unsupported timestamp format %q", raw)
}

// MarshalJSON выводит дату в RFC3339 или null
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}
