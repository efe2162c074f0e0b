// Package compliance evaluates proposed trade plans against the desk's
// rulebook: instrument and counterparty whitelists, per-order size limits
// and projected position exposure. Evaluation is total: it never returns
// an error, only coded violations and warnings.
package compliance

import (
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/aurumdesk/riskgate/internal/metrics"
	"github.com/aurumdesk/riskgate/internal/plan"
	"github.com/aurumdesk/riskgate/internal/risk"
)

// Rule codes reported by Evaluate. Violations block a plan; warnings are
// advisory only.
const (
	CodeInstrumentNotApproved        = "instrument_not_approved"
	CodeInstrumentRestricted         = "instrument_restricted"
	CodeInvalidSide                  = "invalid_side"
	CodeInvalidSizeOz                = "invalid_size_oz"
	CodeExceedsSingleOrderLimit      = "exceeds_single_order_limit"
	CodeExceedsPositionLimit         = "exceeds_position_limit"
	CodeMissingStopLoss              = "missing_stop_loss"
	CodeMissingTakeProfit            = "missing_take_profit"
	CodeCounterpartyNotApproved      = "counterparty_not_approved"
	CodeCounterpartyRestricted       = "counterparty_restricted"
	CodeProjectedPositionLimitBreach = "projected_position_limit_breach"
)

// positionEpsilon absorbs float accumulation noise in the projected
// position comparison.
const positionEpsilon = 1e-6

// Config backs the compliance rule checks. Token lists are matched
// against normalized (trimmed, uppercased) order fields.
type Config struct {
	AllowedInstruments       []string `mapstructure:"allowed_instruments" json:"allowed_instruments"`
	RestrictedInstruments    []string `mapstructure:"restricted_instruments" json:"restricted_instruments"`
	AllowedCounterparties    []string `mapstructure:"allowed_counterparties" json:"allowed_counterparties"`
	RestrictedCounterparties []string `mapstructure:"restricted_counterparties" json:"restricted_counterparties"`
	MaxSingleOrderOz         float64  `mapstructure:"max_single_order_oz" json:"max_single_order_oz"`
	RequireStopLoss          bool     `mapstructure:"require_stop_loss" json:"require_stop_loss"`
	RequireTakeProfit        bool     `mapstructure:"require_take_profit" json:"require_take_profit"`
}

// Normalized returns a copy with every token list entry trimmed and
// uppercased, so Evaluate can compare tokens directly.
func (c Config) Normalized() Config {
	normalized := c
	normalized.AllowedInstruments = normalizeTokens(c.AllowedInstruments)
	normalized.RestrictedInstruments = normalizeTokens(c.RestrictedInstruments)
	normalized.AllowedCounterparties = normalizeTokens(c.AllowedCounterparties)
	normalized.RestrictedCounterparties = normalizeTokens(c.RestrictedCounterparties)
	return normalized
}

func normalizeTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		out = append(out, plan.NormalizeToken(token))
	}
	return out
}

// OrderReport carries the per-order evaluation outcome.
type OrderReport struct {
	Index        int      `json:"index"`
	Instrument   string   `json:"instrument"`
	Side         string   `json:"side"`
	SizeOz       *float64 `json:"size_oz"`
	Counterparty string   `json:"counterparty"`
	Violations   []string `json:"violations"`
	Warnings     []string `json:"warnings"`
}

// Report is the aggregate compliance outcome for a plan. Violations and
// Warnings are deduplicated and sorted; OrderReports preserve order and
// per-order detail.
type Report struct {
	OrdersChecked       int           `json:"orders_checked"`
	NetExposureOz       float64       `json:"net_exposure_oz"`
	ProjectedPositionOz float64       `json:"projected_position_oz"`
	PositionLimitOz     float64       `json:"position_limit_oz"`
	Violations          []string      `json:"violations"`
	Warnings            []string      `json:"warnings"`
	OrderReports        []OrderReport `json:"order_reports"`
}

// Clean reports whether no blocking violations were found.
func (r *Report) Clean() bool {
	return len(r.Violations) == 0
}

// Evaluate checks every order in the proposed plan against the rulebook
// and the position limit. The plan's orders field may be a single object
// or a list; anything unparsable simply contributes no orders.
func Evaluate(proposed map[string]any, currentPositionOz float64, limits risk.Limits, cfg Config) *Report {
	config := cfg.Normalized()
	orders := plan.ExtractOrderSet(proposed)

	violations := []string{}
	warnings := []string{}
	orderReports := make([]OrderReport, 0, len(orders))
	netExposure := 0.0

	for _, order := range orders {
		orderViolations := []string{}
		orderWarnings := []string{}

		if len(config.AllowedInstruments) > 0 && order.Instrument != "" && !contains(config.AllowedInstruments, order.Instrument) {
			orderViolations = append(orderViolations, CodeInstrumentNotApproved)
		}
		if order.Instrument != "" && contains(config.RestrictedInstruments, order.Instrument) {
			orderViolations = append(orderViolations, CodeInstrumentRestricted)
		}

		validSide := order.Side == "buy" || order.Side == "sell"
		if !validSide {
			orderViolations = append(orderViolations, CodeInvalidSide)
		}

		if order.SizeOz == nil || *order.SizeOz <= 0 {
			orderViolations = append(orderViolations, CodeInvalidSizeOz)
		} else {
			if *order.SizeOz > config.MaxSingleOrderOz {
				orderViolations = append(orderViolations, CodeExceedsSingleOrderLimit)
			}
			if *order.SizeOz > limits.MaxPositionOz {
				orderViolations = append(orderViolations, CodeExceedsPositionLimit)
			}
		}

		if config.RequireStopLoss && !order.HasStop {
			orderViolations = append(orderViolations, CodeMissingStopLoss)
		}
		if config.RequireTakeProfit && !order.HasTarget {
			orderWarnings = append(orderWarnings, CodeMissingTakeProfit)
		}

		if len(config.AllowedCounterparties) > 0 && order.Counterparty != "" && !contains(config.AllowedCounterparties, order.Counterparty) {
			orderViolations = append(orderViolations, CodeCounterpartyNotApproved)
		}
		if order.Counterparty != "" && contains(config.RestrictedCounterparties, order.Counterparty) {
			orderViolations = append(orderViolations, CodeCounterpartyRestricted)
		}

		if order.SizeOz != nil && *order.SizeOz != 0 && validSide {
			direction := 1.0
			if order.Side == "sell" {
				direction = -1.0
			}
			netExposure += direction * *order.SizeOz
		}

		orderReports = append(orderReports, OrderReport{
			Index:        order.Index,
			Instrument:   order.Instrument,
			Side:         order.Side,
			SizeOz:       order.SizeOz,
			Counterparty: order.Counterparty,
			Violations:   orderViolations,
			Warnings:     orderWarnings,
		})
		violations = append(violations, orderViolations...)
		warnings = append(warnings, orderWarnings...)
	}

	projected := currentPositionOz + netExposure
	if limits.MaxPositionOz != 0 && math.Abs(projected) > limits.MaxPositionOz+positionEpsilon {
		violations = append(violations, CodeProjectedPositionLimitBreach)
	}

	report := &Report{
		OrdersChecked:       len(orders),
		NetExposureOz:       netExposure,
		ProjectedPositionOz: projected,
		PositionLimitOz:     limits.MaxPositionOz,
		Violations:          sortedUnique(violations),
		Warnings:            sortedUnique(warnings),
		OrderReports:        orderReports,
	}

	metrics.RecordComplianceViolations(report.Violations)
	log.Debug().
		Int("orders", report.OrdersChecked).
		Int("violations", len(report.Violations)).
		Int("warnings", len(report.Warnings)).
		Msg("Compliance evaluation complete")

	return report
}

func contains(tokens []string, token string) bool {
	for _, candidate := range tokens {
		if candidate == token {
			return true
		}
	}
	return false
}

// sortedUnique deduplicates and sorts rule codes for stable reports.
func sortedUnique(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
