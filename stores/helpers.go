package stores

import (
	"encoding/json"
	"time"

	"github.com/oarkflow/date"

	eventguard "github.com/sbnctech/murmurant-eventguard"
)

// parseFlexibleTime parses the assorted timestamp strings drivers hand back
// for TIMESTAMP columns (RFC3339, space-separated, with or without zone).
func parseFlexibleTime(s string) (time.Time, error) {
	return date.Parse(s)
}

// scanTime normalizes a scanned TIMESTAMP value. NULL and unparseable
// values come back as the zero time.
func scanTime(raw interface{}) time.Time {
	switch v := raw.(type) {
	case time.Time:
		return v
	case string:
		if t, err := parseFlexibleTime(v); err == nil {
			return t
		}
	case []byte:
		if t, err := parseFlexibleTime(string(v)); err == nil {
			return t
		}
	}
	return time.Time{}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// sqlNullTimeOrNil maps the zero time to NULL so open-ended events stay
// NULL instead of 0001-01-01.
func sqlNullTimeOrNil(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}

func capsToJSON(caps eventguard.CapabilitySet) string {
	data, err := json.Marshal(caps.List())
	if err != nil {
		return "[]"
	}
	return string(data)
}

func capsFromJSON(data string) eventguard.CapabilitySet {
	var list []eventguard.Capability
	if err := json.Unmarshal([]byte(data), &list); err != nil {
		return eventguard.CapabilitySet{}
	}
	return eventguard.NewCapabilitySet(list...)
}
