package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/korubo/kybdash/model"
)

// PgStore is a PostgreSQL-backed Store using pgx/v5.
type PgStore struct {
	pool         *pgxpool.Pool
	historyLimit int
}

// NewPgStore creates a new PostgreSQL store with the given history cap.
func NewPgStore(pool *pgxpool.Pool, historyLimit int) *PgStore {
	if historyLimit < 1 {
		historyLimit = 10
	}
	return &PgStore{pool: pool, historyLimit: historyLimit}
}

// HealthCheck verifies connectivity for the readiness probe.
func (s *PgStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// SaveSelectedCustomer durably records the last-run-for customer.
func (s *PgStore) SaveSelectedCustomer(ctx context.Context, subjectID, customerID string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dashboard_selected_customers (subject_id, customer_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (subject_id) DO UPDATE
		SET customer_id = EXCLUDED.customer_id, updated_at = now()`,
		subjectID, customerID,
	)
	if err != nil {
		return fmt.Errorf("save selected customer: %w", err)
	}
	return nil
}

// LastSelectedCustomer returns the saved customer id, or "".
func (s *PgStore) LastSelectedCustomer(ctx context.Context, subjectID string) (string, error) {
	var customerID string
	err := s.pool.QueryRow(ctx, `
		SELECT customer_id FROM dashboard_selected_customers
		WHERE subject_id = $1`,
		subjectID,
	).Scan(&customerID)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query selected customer: %w", err)
	}
	return customerID, nil
}

// SaveRecentCheck inserts a record and trims entries beyond the cap.
func (s *PgStore) SaveRecentCheck(ctx context.Context, subjectID string, rec model.RecentCheckRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin recent check tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO dashboard_recent_checks (
			subject_id, customer_id, customer_name, risk_band, trace_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		subjectID, rec.CustomerID, rec.CustomerName, rec.RiskBand, rec.TraceID, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert recent check: %w", err)
	}

	// Trim beyond the cap, oldest first.
	_, err = tx.Exec(ctx, `
		DELETE FROM dashboard_recent_checks
		WHERE subject_id = $1
		AND id NOT IN (
			SELECT id FROM dashboard_recent_checks
			WHERE subject_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		)`,
		subjectID, s.historyLimit,
	)
	if err != nil {
		return fmt.Errorf("trim recent checks: %w", err)
	}

	return tx.Commit(ctx)
}

// RecentChecks returns the history, most-recent-first.
func (s *PgStore) RecentChecks(ctx context.Context, subjectID string) ([]model.RecentCheckRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT customer_id, customer_name, risk_band, trace_id, created_at
		FROM dashboard_recent_checks
		WHERE subject_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		subjectID, s.historyLimit,
	)
	if err != nil {
		return nil, fmt.Errorf("query recent checks: %w", err)
	}
	defer rows.Close()

	var records []model.RecentCheckRecord
	for rows.Next() {
		var rec model.RecentCheckRecord
		if err := rows.Scan(
			&rec.CustomerID, &rec.CustomerName, &rec.RiskBand, &rec.TraceID, &rec.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan recent check: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// SaveResult replaces the cached result in a single upsert, so concurrent
// readers see either the previous or the new document, never a mix.
func (s *PgStore) SaveResult(ctx context.Context, subjectID string, res model.CheckResult) error {
	payload, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO dashboard_results (subject_id, trace_id, payload, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (subject_id) DO UPDATE
		SET trace_id = EXCLUDED.trace_id, payload = EXCLUDED.payload, updated_at = now()`,
		subjectID, res.TraceID, payload,
	)
	if err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	return nil
}

// LatestResult returns the cached result, if any.
func (s *PgStore) LatestResult(ctx context.Context, subjectID string) (model.CheckResult, bool, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `
		SELECT payload FROM dashboard_results WHERE subject_id = $1`,
		subjectID,
	).Scan(&payload)
	if err == pgx.ErrNoRows {
		return model.CheckResult{}, false, nil
	}
	if err != nil {
		return model.CheckResult{}, false, fmt.Errorf("query result: %w", err)
	}

	var res model.CheckResult
	if err := json.Unmarshal(payload, &res); err != nil {
		return model.CheckResult{}, false, fmt.Errorf("unmarshal result: %w", err)
	}
	return res, true, nil
}

// SaveOverride upserts an override keyed by subject and customer.
func (s *PgStore) SaveOverride(ctx context.Context, subjectID string, o model.RiskBandOverride) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO dashboard_overrides (
			subject_id, customer_id, risk_band, previous_band, actor, reason, trace_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (subject_id, customer_id) DO UPDATE
		SET risk_band = EXCLUDED.risk_band,
		    previous_band = EXCLUDED.previous_band,
		    actor = EXCLUDED.actor,
		    reason = EXCLUDED.reason,
		    trace_id = EXCLUDED.trace_id,
		    created_at = EXCLUDED.created_at`,
		subjectID, o.CustomerID, o.Band, o.PreviousBand, o.Actor, o.Reason, o.TraceID, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save override: %w", err)
	}
	return nil
}

// OverrideFor returns the override for a customer, if any.
func (s *PgStore) OverrideFor(ctx context.Context, subjectID, customerID string) (model.RiskBandOverride, bool, error) {
	var o model.RiskBandOverride
	err := s.pool.QueryRow(ctx, `
		SELECT customer_id, risk_band, previous_band, actor, reason, trace_id, created_at
		FROM dashboard_overrides
		WHERE subject_id = $1 AND customer_id = $2`,
		subjectID, customerID,
	).Scan(&o.CustomerID, &o.Band, &o.PreviousBand, &o.Actor, &o.Reason, &o.TraceID, &o.CreatedAt)
	if err == pgx.ErrNoRows {
		return model.RiskBandOverride{}, false, nil
	}
	if err != nil {
		return model.RiskBandOverride{}, false, fmt.Errorf("query override: %w", err)
	}
	return o, true, nil
}
