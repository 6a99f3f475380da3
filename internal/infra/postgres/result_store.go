package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-maker-service/internal/domain"
)

// ResultStore persists completed quiz outcomes in the quiz_results table.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) Record(ctx context.Context, result domain.QuizResult) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO quiz_results (session_id, category, subcategory, difficulty, score, total, band, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		result.SessionID, result.Category, result.Subcategory, result.Difficulty,
		result.Score, result.Total, string(result.Band), result.FinishedAt)
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	return nil
}

// Recent returns up to limit results, newest first.
func (s *ResultStore) Recent(ctx context.Context, limit int) ([]domain.QuizResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
SELECT session_id, category, subcategory, difficulty, score, total, band, finished_at
FROM quiz_results
ORDER BY finished_at DESC, id DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := make([]domain.QuizResult, 0, limit)
	for rows.Next() {
		var (
			r    domain.QuizResult
			band string
		)
		if err := rows.Scan(&r.SessionID, &r.Category, &r.Subcategory, &r.Difficulty,
			&r.Score, &r.Total, &band, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Band = domain.Band(band)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}
