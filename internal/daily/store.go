package daily

import (
	"context"
	"database/sql"
	"strings"
)

// Result is one player's finished daily round.
type Result struct {
	UserID    string   `json:"userId"`
	Date      string   `json:"date"`
	Score     int      `json:"score"`
	Words     []string `json:"words"`
	ElapsedMs int      `json:"elapsedMs"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) AlreadyPlayed(ctx context.Context, userID, date string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM daily_results WHERE user_id=? AND date=?",
		userID, date,
	).Scan(&cnt)
	return cnt > 0, err
}

// InsertResult records r. A second result for the same user and date is ignored.
func (s *Store) InsertResult(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_results(user_id, date, score, words, elapsed_ms)
		 VALUES(?,?,?,?,?)`, r.UserID, r.Date, r.Score, strings.Join(r.Words, ","), r.ElapsedMs,
	)
	return err
}

type LBRow struct {
	UserID    string   `json:"userId"`
	Score     int      `json:"score"`
	Words     []string `json:"words"`
	ElapsedMs int      `json:"elapsedMs"`
}

// Leaderboard ranks by score, then by time taken.
func (s *Store) Leaderboard(ctx context.Context, date string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, score, words, elapsed_ms
		 FROM daily_results
		 WHERE date=?
		 ORDER BY score DESC, elapsed_ms ASC, created_at ASC
		 LIMIT ?`, date, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LBRow{}
	for rows.Next() {
		var (
			r     LBRow
			words string
		)
		if err := rows.Scan(&r.UserID, &r.Score, &words, &r.ElapsedMs); err != nil {
			return nil, err
		}
		r.Words = splitWords(words)
		out = append(out, r)
	}
	return out, rows.Err()
}

func splitWords(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, ",")
}
