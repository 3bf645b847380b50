package score

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Event payloads are duck-typed: the same semantic value may arrive under any
// of several field names. Each semantic is read through one ordered fallback
// list, defined here and nowhere else.
var (
	plannedAtKeys    = []string{"plannedAt", "eta"}
	pesticideQtyKeys = []string{"pesticides", "pesticideQty", "pesticidesKg"}
	carbonKeys       = []string{"carbon", "carbonKg"}
	geoKeys          = []string{"gps", "locations", "location"}
	telemetryKeys    = []string{"soil", "weather", "moisture", "rainfall", "temperature"}
)

func lookup(p map[string]interface{}, keys []string) (interface{}, bool) {
	for _, k := range keys {
		if v, ok := p[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func lookupNumber(p map[string]interface{}, keys []string) (float64, bool) {
	v, ok := lookup(p, keys)
	if !ok {
		return 0, false
	}
	return asNumber(v)
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func isViolation(p map[string]interface{}) bool {
	b, ok := p["violation"].(bool)
	return ok && b
}

// pesticideBad maps a payload to the pesticide indicator: 1 for declared use,
// 0 for declared absence, 0.5 when the payload says nothing either way.
func pesticideBad(p map[string]interface{}) float64 {
	if flag, ok := p["pesticidesUsed"].(bool); ok {
		if flag {
			return 1
		}
		return 0
	}
	if qty, ok := lookupNumber(p, pesticideQtyKeys); ok {
		if qty > 0 {
			return 1
		}
		return 0
	}
	return 0.5
}

// hasGeo reports whether the payload carries any recognizable location data:
// a coordinate string/pair, a non-empty list of points, or a generic field.
func hasGeo(p map[string]interface{}) bool {
	for _, k := range geoKeys {
		v, ok := p[k]
		if !ok || v == nil {
			continue
		}
		switch loc := v.(type) {
		case string:
			if strings.TrimSpace(loc) != "" {
				return true
			}
		case []interface{}:
			if len(loc) > 0 {
				return true
			}
		default:
			return true
		}
	}
	return false
}

func hasTelemetry(p map[string]interface{}) bool {
	_, ok := lookup(p, telemetryKeys)
	return ok
}
