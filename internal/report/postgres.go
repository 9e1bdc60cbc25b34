package report

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Connect opens a pool and checks it answers.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

const upsertReport = `
	INSERT INTO csp_reports (
		id, fingerprint, document_uri, blocked_uri, violated_directive,
		effective_directive, original_policy, disposition, user_agent,
		occurrences, first_seen_at, last_seen_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $10)
	ON CONFLICT (fingerprint) DO UPDATE SET
		occurrences = csp_reports.occurrences + 1,
		last_seen_at = EXCLUDED.last_seen_at,
		user_agent = EXCLUDED.user_agent
	RETURNING id, occurrences, first_seen_at, last_seen_at
`

func (s *PGStore) Save(ctx context.Context, r Report) (Report, error) {
	err := s.pool.QueryRow(ctx, upsertReport,
		r.ID, r.Fingerprint, r.DocumentURI, r.BlockedURI, r.ViolatedDirective,
		r.EffectiveDirective, r.OriginalPolicy, r.Disposition, r.UserAgent,
		r.LastSeenAt,
	).Scan(&r.ID, &r.Occurrences, &r.FirstSeenAt, &r.LastSeenAt)
	if err != nil {
		return Report{}, fmt.Errorf("upsert csp report: %w", err)
	}
	return r, nil
}

func (s *PGStore) Recent(ctx context.Context, limit int) ([]Report, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, fingerprint, document_uri, blocked_uri, violated_directive,
		       effective_directive, original_policy, disposition, user_agent,
		       occurrences, first_seen_at, last_seen_at
		FROM csp_reports
		ORDER BY last_seen_at DESC, fingerprint
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query csp reports: %w", err)
	}
	defer rows.Close()

	var out []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(
			&r.ID, &r.Fingerprint, &r.DocumentURI, &r.BlockedURI, &r.ViolatedDirective,
			&r.EffectiveDirective, &r.OriginalPolicy, &r.Disposition, &r.UserAgent,
			&r.Occurrences, &r.FirstSeenAt, &r.LastSeenAt,
		); err != nil {
			return nil, fmt.Errorf("scan csp report: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate csp reports: %w", err)
	}
	return out, nil
}
