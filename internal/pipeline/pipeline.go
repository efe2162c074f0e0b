// Package pipeline composes the portfolio store, price history, snapshot
// builder, compliance screen and hard gate into one evaluation flow shared
// by the CLI runner and the HTTP service.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/aurumdesk/riskgate/internal/audit"
	"github.com/aurumdesk/riskgate/internal/compliance"
	"github.com/aurumdesk/riskgate/internal/config"
	"github.com/aurumdesk/riskgate/internal/gate"
	"github.com/aurumdesk/riskgate/internal/market"
	"github.com/aurumdesk/riskgate/internal/risk"
	"github.com/aurumdesk/riskgate/internal/state"
)

// StateLoader loads the current portfolio state for a symbol.
type StateLoader interface {
	Load(ctx context.Context, symbol string) (state.State, error)
}

// Evaluator runs the full risk pipeline for one proposed trading plan.
type Evaluator struct {
	cfg      *config.Config
	states   StateLoader
	provider market.Provider
	builder  *risk.Builder
	auditLog *audit.Logger
}

// New wires an Evaluator from live infrastructure. redisClient may be nil,
// in which case price-series caching is disabled.
func New(cfg *config.Config, pool *pgxpool.Pool, redisClient *redis.Client) *Evaluator {
	history := market.NewHistoryStoreWithPool(pool)
	guarded := market.NewGuardedProvider(history)
	cache := market.NewSeriesCache(redisClient, time.Duration(cfg.Redis.TTLSec)*time.Second)
	provider := market.NewCachedProvider(guarded, cache)

	return &Evaluator{
		cfg:      cfg,
		states:   state.NewPortfolioStoreWithPool(pool),
		provider: provider,
		builder:  risk.NewBuilder(provider, cfg.CorrelationTargets(), cfg.ScenarioShocks(), cfg.Correlation.Window),
		auditLog: audit.NewLoggerWithPool(pool, cfg.Audit.Enabled),
	}
}

// NewWithDeps wires an Evaluator from explicit collaborators, used by tests
// and by callers that already hold the stores.
func NewWithDeps(cfg *config.Config, states StateLoader, provider market.Provider, auditLog *audit.Logger) *Evaluator {
	return &Evaluator{
		cfg:      cfg,
		states:   states,
		provider: provider,
		builder:  risk.NewBuilder(provider, cfg.CorrelationTargets(), cfg.ScenarioShocks(), cfg.Correlation.Window),
		auditLog: auditLog,
	}
}

// Request is one evaluation of a proposed plan. Snapshot, when supplied,
// skips the server-side snapshot build and is used as-is.
type Request struct {
	Plan      map[string]any     `json:"plan"`
	Snapshot  *risk.Snapshot     `json:"snapshot,omitempty"`
	News      *risk.NewsSnapshot `json:"news,omitempty"`
	RequestID string             `json:"request_id,omitempty"`
}

// Result carries every artifact the pipeline produced for one request.
type Result struct {
	Symbol     string             `json:"symbol"`
	RequestID  string             `json:"request_id"`
	Snapshot   *risk.Snapshot     `json:"snapshot"`
	Compliance *compliance.Report `json:"compliance"`
	Gate       *gate.Report       `json:"gate"`
}

// Breached reports whether the hard gate vetoed the plan.
func (r *Result) Breached() bool {
	return r.Gate != nil && r.Gate.Breached
}

// Evaluate runs compliance and the hard gate over the proposed plan. An
// error means the pipeline could not complete (infrastructure failure); a
// gate breach is a normal outcome reported through Result.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*Result, error) {
	symbol := e.cfg.Desk.Symbol
	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}

	snapshot := req.Snapshot
	if snapshot == nil {
		built, err := e.buildSnapshot(ctx, symbol, requestID, req.News)
		if err != nil {
			return nil, err
		}
		snapshot = built
	}

	complianceReport := compliance.Evaluate(req.Plan, snapshot.CurrentPositionOz, e.cfg.Limits(), e.cfg.Compliance)
	if err := e.auditLog.LogComplianceOutcome(ctx, symbol, requestID, complianceReport.Violations, complianceReport.Warnings); err != nil {
		log.Warn().Err(err).Msg("Failed to audit compliance outcome")
	}

	gateReport := gate.Enforce(req.Plan, snapshot, e.cfg.GateSettings())
	if err := e.auditLog.LogGateVerdict(ctx, symbol, requestID, gateReport.Breached, gatePayload(gateReport)); err != nil {
		log.Warn().Err(err).Msg("Failed to audit gate verdict")
	}

	return &Result{
		Symbol:     symbol,
		RequestID:  requestID,
		Snapshot:   snapshot,
		Compliance: complianceReport,
		Gate:       gateReport,
	}, nil
}

func (e *Evaluator) buildSnapshot(ctx context.Context, symbol, requestID string, news *risk.NewsSnapshot) (*risk.Snapshot, error) {
	stored, err := e.states.Load(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load portfolio state: %w", err)
	}

	history, err := e.provider.CloseSeries(ctx, symbol, e.cfg.Desk.HistoryDays)
	if err != nil {
		return nil, fmt.Errorf("failed to load price history: %w", err)
	}

	snapshot := e.builder.Build(ctx, risk.SnapshotInput{
		Symbol:            symbol,
		History:           history,
		Limits:            e.cfg.Limits(),
		CurrentPositionOz: stored.Position.NetOz,
		PnLTodayMillions:  stored.TotalPnLMillions(),
		News:              news,
	})

	if err := e.auditLog.LogSnapshotBuilt(ctx, symbol, requestID, snapshot.RiskAlerts); err != nil {
		log.Warn().Err(err).Msg("Failed to audit snapshot build")
	}

	return snapshot, nil
}

func gatePayload(report *gate.Report) map[string]any {
	codes := make([]string, 0, len(report.Violations))
	for _, violation := range report.Violations {
		codes = append(codes, violation.Code)
	}
	return map[string]any{
		"breached":   report.Breached,
		"violations": codes,
		"summary":    report.Summary(),
	}
}
