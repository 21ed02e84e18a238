// Package feed turns raw broker frames into normalized ticks.
package feed

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"tickalert/internal/application/port"
)

// Field-name candidates in priority order. The broker SDK changed its
// message schema across versions; these cover every generation seen on
// the wire.
var (
	securityIDKeys = []string{"securityId", "symbol", "security_id", "s"}
	priceKeys      = []string{"lastTradedPrice", "ltp", "last_price", "last"}
	nestedKeys     = []string{"data", "payload", "tick", "update"}
)

// Normalize extracts a (security id, price) pair from an arbitrary feed
// message. raw may be JSON bytes/text, a decoded map, or a struct-shaped
// SDK payload. Messages that carry no usable pair (heartbeats, acks,
// control frames) yield ok=false; that is a normal outcome, not an error.
func Normalize(raw any) (port.Tick, bool) {
	m, ok := asMap(raw)
	if !ok {
		return port.Tick{}, false
	}

	id := firstString(m, securityIDKeys)
	price, havePrice := firstValue(m, priceKeys)

	// One level of nesting covers envelope shapes like {"data": {...}}.
	if id == "" {
		for _, k := range nestedKeys {
			nested, isMap := asNestedMap(m[k])
			if !isMap {
				continue
			}
			id = firstString(nested, securityIDKeys)
			if !havePrice {
				price, havePrice = firstValue(nested, priceKeys)
			}
			if id != "" {
				break
			}
		}
	}
	if id == "" || !havePrice {
		return port.Tick{}, false
	}

	str, num, ok := parsePrice(price)
	if !ok {
		return port.Tick{}, false
	}
	return port.Tick{
		SecurityID: id,
		PriceStr:   str,
		PriceNum:   num,
		Ts:         time.Now().UnixMilli(),
	}, true
}

func asMap(raw any) (map[string]any, bool) {
	switch v := raw.(type) {
	case nil:
		return nil, false
	case map[string]any:
		return v, true
	case json.RawMessage:
		return decodeJSON(v)
	case []byte:
		return decodeJSON(v)
	case string:
		return decodeJSON([]byte(v))
	default:
		// Attribute-style payloads (SDK structs): round-trip through JSON
		// so the same field lookup applies.
		b, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		return decodeJSON(b)
	}
}

// asNestedMap only unwraps already-decoded containers; nested raw bytes
// are not a known feed shape.
func asNestedMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func decodeJSON(b []byte) (map[string]any, bool) {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, false
	}
	return m, true
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s := stringify(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func firstValue(m map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			continue
		}
		return v, true
	}
	return nil, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case json.Number:
		return s.String()
	case float64:
		// JSON numbers decode as float64; security ids are integral.
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

func parsePrice(v any) (str string, num float64, ok bool) {
	switch p := v.(type) {
	case float64:
		num = p
		str = strconv.FormatFloat(p, 'f', -1, 64)
	case json.Number:
		n, err := p.Float64()
		if err != nil {
			return "", 0, false
		}
		num, str = n, p.String()
	case string:
		s := strings.TrimSpace(p)
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return "", 0, false
		}
		num, str = n, s
	default:
		return "", 0, false
	}
	if math.IsNaN(num) || math.IsInf(num, 0) || num <= 0 {
		return "", 0, false
	}
	return str, num, true
}
