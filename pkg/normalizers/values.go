package normalizers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/models"
)

// timeLayouts are tried in order for timestamps stored as text. Text matching none of them is
// passed through to the destination.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -07:00",
	"2006-01-02 15:04:05.999999999-0700",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02",
}

// text converts a driver value to a string. ok is false for NULL.
func text(v any) (s string, ok bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, true
	case []byte:
		return string(val), true
	case fmt.Stringer:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}

func stringOrDefault(v any, def string) string {
	if s, ok := text(v); ok {
		return s
	}
	return def
}

func optionalString(v any) *string {
	s, ok := text(v)
	if !ok {
		return nil
	}
	return &s
}

// parseUUID returns uuid.Nil for NULL so required checks can report the field
func parseUUID(v any) (uuid.UUID, error) {
	if id, ok := v.(uuid.UUID); ok {
		return id, nil
	}

	s, ok := text(v)
	if !ok || strings.TrimSpace(s) == "" {
		return uuid.Nil, nil
	}

	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid uuid %q: %w", s, err)
	}
	return id, nil
}

func optionalTime(v any) *models.Timestamp {
	if t, ok := v.(time.Time); ok {
		ts := models.At(t)
		return &ts
	}

	s, ok := text(v)
	if !ok || strings.TrimSpace(s) == "" {
		return nil
	}

	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ts := models.At(t)
			return &ts
		}
	}

	ts := models.Verbatim(s)
	return &ts
}

func timeOrNow(v any, now func() time.Time) models.Timestamp {
	if t := optionalTime(v); t != nil {
		return *t
	}
	return models.At(now())
}

func optionalFloat(v any) (*float64, error) {
	var f float64
	switch val := v.(type) {
	case nil:
		return nil, nil
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int64:
		f = float64(val)
	case int:
		f = float64(val)
	default:
		s, _ := text(val)
		if strings.TrimSpace(s) == "" {
			return nil, nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", s, err)
		}
		f = parsed
	}
	return &f, nil
}
