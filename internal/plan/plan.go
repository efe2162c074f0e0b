// Package plan normalizes the loosely-typed JSON trade-plan documents
// produced by the LLM negotiation layer into tagged Go structures. Parsing
// is deliberately permissive: malformed or missing fields degrade to typed
// absent sentinels (nil pointers, empty strings) and never produce errors,
// so downstream evaluation stays total over arbitrary input shapes.
package plan

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Order is a single execution order lifted out of a plan document. Numeric
// fields are pointers: nil means the field was missing or unparsable.
type Order struct {
	Index        int      `json:"index"`
	Instrument   string   `json:"instrument"`
	Side         string   `json:"side"`
	SizeOz       *float64 `json:"size_oz"`
	ExposureOz   *float64 `json:"exposure_oz,omitempty"`
	Type         string   `json:"type,omitempty"`
	Stop         *float64 `json:"stop,omitempty"`
	HasStop      bool     `json:"-"`
	HasTarget    bool     `json:"-"`
	Counterparty string   `json:"counterparty,omitempty"`
}

// RiskMetrics carries the risk sign-off numbers embedded in the final
// workflow response.
type RiskMetrics struct {
	PositionUtilization         *float64 `json:"position_utilization"`
	StressTestWorstLossMillions *float64 `json:"stress_test_worst_loss_millions"`
}

// AsMap returns value as a map when it is one, otherwise an empty map.
func AsMap(value any) map[string]any {
	if m, ok := value.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}

// SafeFloat parses a value into a float tolerating ints, json.Number and
// numeric-looking strings. Anything else yields nil.
func SafeFloat(value any) *float64 {
	switch v := value.(type) {
	case float64:
		return &v
	case float32:
		f := float64(v)
		return &f
	case int:
		f := float64(v)
		return &f
	case int64:
		f := float64(v)
		return &f
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return &f
		}
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return &f
		}
	}
	return nil
}

// NormalizeToken trims and uppercases an instrument or counterparty token.
func NormalizeToken(value any) string {
	if value == nil {
		return ""
	}
	token, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(token))
}

// truthy mirrors the tolerance of the upstream JSON producer: absent, nil,
// empty strings, zero numbers and false all count as "not provided".
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return strings.TrimSpace(v) != ""
	case float64:
		return v != 0
	case int:
		return v != 0
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	default:
		return true
	}
}

// ParseOrder lifts one raw order object into a typed Order.
func ParseOrder(index int, raw map[string]any) Order {
	order := Order{
		Index:        index,
		Instrument:   NormalizeToken(raw["instrument"]),
		Counterparty: NormalizeToken(raw["counterparty"]),
		SizeOz:       SafeFloat(raw["size_oz"]),
		Stop:         SafeFloat(raw["stop"]),
		HasStop:      truthy(raw["stop"]),
		HasTarget:    truthy(raw["target"]),
	}

	if side, ok := raw["side"].(string); ok {
		order.Side = strings.ToLower(strings.TrimSpace(side))
	}
	if orderType, ok := raw["type"].(string); ok {
		order.Type = strings.ToUpper(strings.TrimSpace(orderType))
	}

	// Exposure falls back through the aliases seen in the wild.
	for _, key := range []string{"size_oz", "size", "quantity"} {
		if numeric := SafeFloat(raw[key]); numeric != nil {
			order.ExposureOz = numeric
			break
		}
	}

	return order
}

// parseOrderList converts a raw slice, skipping non-object entries.
func parseOrderList(raw []any) []Order {
	orders := make([]Order, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		orders = append(orders, ParseOrder(len(orders), entry))
	}
	return orders
}

// CollectOrders extracts the execution orders from a final workflow
// response, looking first under details.execution_checklist.orders and
// falling back to a flat details.orders list.
func CollectOrders(response map[string]any) []Order {
	details := AsMap(response["details"])
	execution := AsMap(details["execution_checklist"])
	if raw, ok := execution["orders"].([]any); ok {
		return parseOrderList(raw)
	}
	if raw, ok := details["orders"].([]any); ok {
		return parseOrderList(raw)
	}
	return []Order{}
}

// ExtractOrderSet normalizes the `orders` field of a proposed plan, which
// may be a single object or a collection; non-object entries are ignored.
func ExtractOrderSet(p map[string]any) []Order {
	switch raw := p["orders"].(type) {
	case map[string]any:
		return []Order{ParseOrder(0, raw)}
	case []any:
		return parseOrderList(raw)
	default:
		return []Order{}
	}
}

// ExtractRiskMetrics reads the risk sign-off metrics from a final workflow
// response under details.risk_compliance_signoff.risk_metrics.
func ExtractRiskMetrics(response map[string]any) RiskMetrics {
	details := AsMap(response["details"])
	signoff := AsMap(details["risk_compliance_signoff"])
	metrics := AsMap(signoff["risk_metrics"])
	return RiskMetrics{
		PositionUtilization:         SafeFloat(metrics["position_utilization"]),
		StressTestWorstLossMillions: SafeFloat(metrics["stress_test_worst_loss_millions"]),
	}
}

// LargestExposure returns the largest absolute order exposure, or nil when
// no order carries a parsable size.
func LargestExposure(orders []Order) *float64 {
	var largest *float64
	for _, order := range orders {
		if order.ExposureOz == nil {
			continue
		}
		size := order.ExposureOz
		abs := *size
		if abs < 0 {
			abs = -abs
		}
		if largest == nil || abs > *largest {
			value := abs
			largest = &value
		}
	}
	return largest
}

// stop variants that count as protective order types.
var stopOrderTypes = map[string]struct{}{
	"STOP":       {},
	"STOP_LIMIT": {},
	"STOP_LOSS":  {},
}

// HasStopProtection reports whether at least one order is a stop variant or
// carries a parsable stop level.
func HasStopProtection(orders []Order) bool {
	for _, order := range orders {
		if _, ok := stopOrderTypes[order.Type]; ok {
			return true
		}
		if order.Stop != nil {
			return true
		}
	}
	return false
}
