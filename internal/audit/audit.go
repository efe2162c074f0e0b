// Package audit persists the desk's evaluation trail: every gate verdict,
// snapshot build and compliance run lands in gate_audit_log with its full
// report payload, so a blocked plan can be reconstructed after the fact.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/aurumdesk/riskgate/internal/metrics"
)

// EventType represents the type of audit event
type EventType string

const (
	// Gate verdicts
	EventTypeGatePass  EventType = "GATE_PASS"
	EventTypeGateBlock EventType = "GATE_BLOCK"

	// Pipeline stages
	EventTypeSnapshotBuilt       EventType = "SNAPSHOT_BUILT"
	EventTypeComplianceEvaluated EventType = "COMPLIANCE_EVALUATED"
	EventTypeStateUpdated        EventType = "STATE_UPDATED"

	// Configuration events
	EventTypeConfigLoaded EventType = "CONFIG_LOADED"
)

// Severity represents the severity level of an audit event
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Event represents a single audit log event
type Event struct {
	ID        uuid.UUID      `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	EventType EventType      `json:"event_type"`
	Severity  Severity       `json:"severity"`
	Symbol    string         `json:"symbol,omitempty"`
	Breached  bool           `json:"breached"`
	Action    string         `json:"action"`
	Payload   map[string]any `json:"payload,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// DBPool is the interface for database operations, satisfied by both
// pgxpool.Pool and mocks in tests.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// Logger handles audit logging operations
type Logger struct {
	db      DBPool
	enabled bool
}

// NewLogger creates a new audit logger
func NewLogger(db DBPool, enabled bool) *Logger {
	return &Logger{
		db:      db,
		enabled: enabled,
	}
}

// NewLoggerWithPool creates an audit logger from a pgxpool.Pool.
func NewLoggerWithPool(pool *pgxpool.Pool, enabled bool) *Logger {
	return &Logger{db: pool, enabled: enabled}
}

// Log records an audit event
func (l *Logger) Log(ctx context.Context, event *Event) error {
	if l == nil || !l.enabled {
		return nil
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Log to structured logger for immediate visibility
	logEvent := log.With().
		Str("event_id", event.ID.String()).
		Str("event_type", string(event.EventType)).
		Str("severity", string(event.Severity)).
		Str("symbol", event.Symbol).
		Bool("breached", event.Breached).
		Str("action", event.Action).
		Logger()

	switch event.Severity {
	case SeverityCritical, SeverityError:
		logEvent.Error().Msg("Audit event")
	case SeverityWarning:
		logEvent.Warn().Msg("Audit event")
	default:
		logEvent.Info().Msg("Audit event")
	}

	if l.db != nil {
		if err := l.persistEvent(ctx, event); err != nil {
			metrics.RecordAuditLog(string(event.EventType), false)
			return err
		}
	}

	metrics.RecordAuditLog(string(event.EventType), true)
	return nil
}

// persistEvent stores the audit event in the database
func (l *Logger) persistEvent(ctx context.Context, event *Event) error {
	query := `
		INSERT INTO gate_audit_log (
			id, ts, event_type, severity, symbol, breached, action, payload, request_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	var payloadJSON []byte
	if event.Payload != nil {
		var err error
		payloadJSON, err = json.Marshal(event.Payload)
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal audit event payload")
			payloadJSON = []byte("{}")
		}
	}

	_, err := l.db.Exec(ctx, query,
		event.ID,
		event.Timestamp,
		event.EventType,
		event.Severity,
		event.Symbol,
		event.Breached,
		event.Action,
		payloadJSON,
		event.RequestID,
	)
	if err != nil {
		log.Error().Err(err).
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.EventType)).
			Msg("Failed to persist audit event to database")
		return err
	}

	return nil
}

// QueryFilters defines filters for querying audit events
type QueryFilters struct {
	EventType EventType
	Symbol    string
	StartTime time.Time
	EndTime   time.Time
	Limit     int
}

// Query retrieves audit events based on filters, newest first.
func (l *Logger) Query(ctx context.Context, filters *QueryFilters) ([]Event, error) {
	if l == nil || l.db == nil {
		return nil, nil
	}

	query := `
		SELECT id, ts, event_type, severity, symbol, breached, action, payload, request_id
		FROM gate_audit_log
		WHERE 1=1
	`

	args := []interface{}{}
	argPos := 1

	if filters.EventType != "" {
		query += ` AND event_type = $` + string(rune('0'+argPos))
		args = append(args, filters.EventType)
		argPos++
	}

	if filters.Symbol != "" {
		query += ` AND symbol = $` + string(rune('0'+argPos))
		args = append(args, filters.Symbol)
		argPos++
	}

	if !filters.StartTime.IsZero() {
		query += ` AND ts >= $` + string(rune('0'+argPos))
		args = append(args, filters.StartTime)
		argPos++
	}

	if !filters.EndTime.IsZero() {
		query += ` AND ts <= $` + string(rune('0'+argPos))
		args = append(args, filters.EndTime)
		argPos++
	}

	query += ` ORDER BY ts DESC`

	if filters.Limit > 0 {
		query += ` LIMIT $` + string(rune('0'+argPos))
		args = append(args, filters.Limit)
	}

	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []Event{}
	for rows.Next() {
		var event Event
		var payloadJSON []byte

		err := rows.Scan(
			&event.ID,
			&event.Timestamp,
			&event.EventType,
			&event.Severity,
			&event.Symbol,
			&event.Breached,
			&event.Action,
			&payloadJSON,
			&event.RequestID,
		)
		if err != nil {
			return nil, err
		}

		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &event.Payload); err != nil {
				log.Warn().Err(err).Msg("Failed to unmarshal audit event payload")
			}
		}

		events = append(events, event)
	}

	return events, rows.Err()
}

// Helper functions for common audit events

// LogGateVerdict logs a gate evaluation outcome with its full report.
func (l *Logger) LogGateVerdict(ctx context.Context, symbol, requestID string, breached bool, report map[string]any) error {
	eventType := EventTypeGatePass
	severity := SeverityInfo
	action := "Hard risk gate passed"
	if breached {
		eventType = EventTypeGateBlock
		severity = SeverityCritical
		action = "Hard risk gate blocked execution"
	}

	return l.Log(ctx, &Event{
		EventType: eventType,
		Severity:  severity,
		Symbol:    symbol,
		Breached:  breached,
		Action:    action,
		Payload:   report,
		RequestID: requestID,
	})
}

// LogSnapshotBuilt logs a completed risk snapshot build.
func (l *Logger) LogSnapshotBuilt(ctx context.Context, symbol, requestID string, alerts []string) error {
	severity := SeverityInfo
	if len(alerts) > 0 {
		severity = SeverityWarning
	}

	return l.Log(ctx, &Event{
		EventType: EventTypeSnapshotBuilt,
		Severity:  severity,
		Symbol:    symbol,
		Action:    "Risk snapshot built",
		Payload:   map[string]any{"risk_alerts": alerts},
		RequestID: requestID,
	})
}

// LogComplianceOutcome logs a compliance evaluation result.
func (l *Logger) LogComplianceOutcome(ctx context.Context, symbol, requestID string, violations, warnings []string) error {
	severity := SeverityInfo
	if len(violations) > 0 {
		severity = SeverityWarning
	}

	return l.Log(ctx, &Event{
		EventType: EventTypeComplianceEvaluated,
		Severity:  severity,
		Symbol:    symbol,
		Breached:  len(violations) > 0,
		Action:    "Compliance evaluation complete",
		Payload: map[string]any{
			"violations": violations,
			"warnings":   warnings,
		},
		RequestID: requestID,
	})
}
