package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/kinetic-data/motion.report/internal/motion"
)

// Session is one guided-exercise run recorded for workout history.
type Session struct {
	SessionID  string     `json:"session_id"`
	ExerciseID string     `json:"exercise_id"`
	DeviceTier string     `json:"device_tier"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// RecordSession inserts a new session row.
func (db *DB) RecordSession(s Session) error {
	_, err := db.Exec(`
		INSERT INTO sessions (session_id, exercise_id, device_tier, started_at)
		VALUES (?, ?, ?, ?)`,
		s.SessionID, s.ExerciseID, s.DeviceTier, s.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record session %q: %w", s.SessionID, err)
	}
	return nil
}

// EndSession marks a session finished.
func (db *DB) EndSession(sessionID string, endedAt time.Time) error {
	_, err := db.Exec(`UPDATE sessions SET ended_at = ? WHERE session_id = ?`,
		endedAt.UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to end session %q: %w", sessionID, err)
	}
	return nil
}

// RecordScoreTick persists one scoring tick for a session.
func (db *DB) RecordScoreTick(sessionID string, ts time.Time, score *motion.FormScore, feedback []string) error {
	if feedback == nil {
		feedback = []string{}
	}
	feedbackJSON, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("failed to encode feedback: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO score_ticks (session_id, ts, overall, symmetry, range_of_motion, tempo, stability, feedback)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, ts.UTC(), score.Overall, score.Symmetry, score.RangeOfMotion,
		score.Tempo, score.Stability, string(feedbackJSON))
	if err != nil {
		return fmt.Errorf("failed to record score tick: %w", err)
	}
	return nil
}

// SessionSummary aggregates a session's recorded scoring ticks.
type SessionSummary struct {
	SessionID  string  `json:"session_id"`
	TickCount  int     `json:"tick_count"`
	AvgOverall float64 `json:"avg_overall"`
	MinOverall float64 `json:"min_overall"`
	MaxOverall float64 `json:"max_overall"`
}

// SummarizeSession computes aggregate statistics for a session's score ticks.
func (db *DB) SummarizeSession(sessionID string) (*SessionSummary, error) {
	row := db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(AVG(overall), 0),
		       COALESCE(MIN(overall), 0),
		       COALESCE(MAX(overall), 0)
		FROM score_ticks WHERE session_id = ?`, sessionID)

	summary := &SessionSummary{SessionID: sessionID}
	if err := row.Scan(&summary.TickCount, &summary.AvgOverall, &summary.MinOverall, &summary.MaxOverall); err != nil {
		return nil, fmt.Errorf("failed to summarize session %q: %w", sessionID, err)
	}
	return summary, nil
}
