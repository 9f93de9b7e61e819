// Package store archives evaluated interviews in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spigell/interviewd/internal/interview"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("evaluation not found")

// Record is one archived evaluation.
type Record struct {
	SessionID      string           `json:"session_id"`
	Candidate      string           `json:"candidate"`
	Role           string           `json:"role"`
	CompletedAt    time.Time        `json:"completed_at"`
	Overall        float64          `json:"overall"`
	Rating         string           `json:"rating"`
	Recommendation string           `json:"recommendation"`
	Scores         interview.Scores `json:"scores"`
	QuestionsAsked int              `json:"questions_asked"`
	Detailed       json.RawMessage  `json:"detailed,omitempty"`
}

type SQLiteStore struct {
	db *sql.DB
}

// Open creates the database file and schema if needed.
func Open(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS evaluations (
		session_id TEXT PRIMARY KEY,
		candidate TEXT NOT NULL,
		role TEXT NOT NULL,
		completed_at INTEGER NOT NULL,
		overall REAL NOT NULL,
		rating TEXT NOT NULL,
		recommendation TEXT NOT NULL,
		technical INTEGER NOT NULL,
		communication INTEGER NOT NULL,
		problem_approach INTEGER NOT NULL,
		collaboration INTEGER NOT NULL,
		questions_asked INTEGER NOT NULL,
		detailed_json TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_evaluations_completed ON evaluations(completed_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Save archives an evaluated session. Saving the same session again replaces the record.
func (s *SQLiteStore) Save(ctx context.Context, sess *interview.Session) error {
	if sess.Evaluation == nil {
		return errors.New("session has no evaluation")
	}

	detailed, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	completed := sess.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}

	card := sess.Evaluation
	query := `
	INSERT INTO evaluations (session_id, candidate, role, completed_at, overall, rating, recommendation,
		technical, communication, problem_approach, collaboration, questions_asked, detailed_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		completed_at = excluded.completed_at,
		overall = excluded.overall,
		rating = excluded.rating,
		recommendation = excluded.recommendation,
		technical = excluded.technical,
		communication = excluded.communication,
		problem_approach = excluded.problem_approach,
		collaboration = excluded.collaboration,
		questions_asked = excluded.questions_asked,
		detailed_json = excluded.detailed_json`

	_, err = s.db.ExecContext(ctx, query,
		sess.ID, sess.CandidateName, sess.TargetRole, completed.Unix(),
		card.Overall, card.Rating, card.Recommendation,
		card.Scores.Technical, card.Scores.Communication, card.Scores.ProblemApproach, card.Scores.Collaboration,
		sess.QuestionsAsked, string(detailed),
	)
	if err != nil {
		return fmt.Errorf("save evaluation: %w", err)
	}
	return nil
}

// Get returns the record with the archived session JSON.
func (s *SQLiteStore) Get(ctx context.Context, sessionID string) (*Record, error) {
	query := `
		SELECT session_id, candidate, role, completed_at, overall, rating, recommendation,
		       technical, communication, problem_approach, collaboration, questions_asked, detailed_json
		FROM evaluations WHERE session_id = ?`

	var detailed string
	rec, err := scanRecord(s.db.QueryRowContext(ctx, query, sessionID), &detailed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.Detailed = json.RawMessage(detailed)
	return rec, nil
}

// List returns the most recent records first, without the session JSON.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT session_id, candidate, role, completed_at, overall, rating, recommendation,
		       technical, communication, problem_approach, collaboration, questions_asked
		FROM evaluations ORDER BY completed_at DESC, session_id LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query evaluations: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate evaluations: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, detailed *string) (*Record, error) {
	var rec Record
	var completed int64

	dest := []any{
		&rec.SessionID, &rec.Candidate, &rec.Role, &completed, &rec.Overall, &rec.Rating, &rec.Recommendation,
		&rec.Scores.Technical, &rec.Scores.Communication, &rec.Scores.ProblemApproach, &rec.Scores.Collaboration,
		&rec.QuestionsAsked,
	}
	if detailed != nil {
		dest = append(dest, detailed)
	}

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan evaluation row: %w", err)
	}
	rec.CompletedAt = time.Unix(completed, 0).UTC()
	return &rec, nil
}
