package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"ReviewPulse/internal/domain"
	"ReviewPulse/internal/ports"
)

// PostgresFingerprintStore persists duplicate fingerprints in Postgres for
// deployments where several ingestion workers share one duplicate history.
//
// Expected schema:
//
//	CREATE TABLE review_fingerprints (
//	    review_id TEXT PRIMARY KEY,
//	    week      DATE NOT NULL,
//	    shingles  BIGINT[] NOT NULL
//	);
type PostgresFingerprintStore struct {
	db             *sql.DB
	retentionWeeks int
	builder        sq.StatementBuilderType
}

var _ ports.FingerprintStore = (*PostgresFingerprintStore)(nil)

// NewPostgresFingerprintStore wires a sql.DB implementation.
func NewPostgresFingerprintStore(db *sql.DB, retentionWeeks int) *PostgresFingerprintStore {
	return &PostgresFingerprintStore{
		db:             db,
		retentionWeeks: retentionWeeks,
		builder:        sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Load returns fingerprints inside the retention window, newest weeks last.
func (s *PostgresFingerprintStore) Load(ctx context.Context) ([]domain.Fingerprint, error) {
	if s.db == nil {
		return nil, nil
	}

	builder := s.builder.
		Select("review_id", "to_char(week, 'YYYY-MM-DD')", "shingles").
		From("review_fingerprints").
		OrderBy("week", "review_id")
	if s.retentionWeeks > 0 {
		builder = builder.Where(
			sq.Expr("week >= (SELECT max(week) FROM review_fingerprints) - ?::int * INTERVAL '7 days'", s.retentionWeeks),
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build fingerprint query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fingerprints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []domain.Fingerprint
	for rows.Next() {
		var (
			fp       domain.Fingerprint
			week     string
			shingles pq.Int64Array
		)
		if err := rows.Scan(&fp.ReviewID, &week, &shingles); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		fp.WeekKey = domain.WeekKey(week)
		fp.Shingles = make([]uint64, len(shingles))
		for i, v := range shingles {
			fp.Shingles[i] = uint64(v)
		}
		result = append(result, fp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return result, nil
}

// Add inserts the fingerprint. Replays of already registered reviews are
// expected and ignored via the conflict clause.
func (s *PostgresFingerprintStore) Add(ctx context.Context, fp domain.Fingerprint) error {
	if s.db == nil {
		return nil
	}

	shingles := make(pq.Int64Array, len(fp.Shingles))
	for i, v := range fp.Shingles {
		shingles[i] = int64(v)
	}

	query, args, err := s.builder.
		Insert("review_fingerprints").
		Columns("review_id", "week", "shingles").
		Values(fp.ReviewID, string(fp.WeekKey), shingles).
		Suffix("ON CONFLICT (review_id) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("build fingerprint insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert fingerprint: %w", err)
	}
	return nil
}
