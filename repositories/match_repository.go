package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/nghiatd-29581/badminton-tournament-app/models"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchConditionFailed means a conditional update matched no row:
	// either the match is gone, its status disallows the transition, or
	// the holder precondition did not hold. Callers re-fetch to classify.
	ErrMatchConditionFailed   = errors.New("match update precondition failed")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
	ErrMatchTeamInvalid       = errors.New("match team conflict or invalid")
)

type MatchRepository interface {
	CreateBatch(ctx context.Context, exec SQLExecutor, matches []*models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, status *models.MatchStatus) ([]*models.Match, error)
	CountByTournamentAndStatus(ctx context.Context, tournamentID int, status models.MatchStatus) (int, error)

	// ClaimForSession moves a match to in_progress and sets the holder,
	// but only when no other session holds it: the row is updated iff it
	// is not completed and its holder is empty or already the caller.
	ClaimForSession(ctx context.Context, id int, sessionID string) (*models.Match, error)
	// AdjustScore applies a relative delta to one team's score, clamped
	// at zero, iff the match is in progress and held by the session.
	AdjustScore(ctx context.Context, id int, sessionID string, teamSlot, delta int) (*models.Match, error)
	// Complete persists final scores, winner and terminal status and
	// clears the holder, iff the match is in progress and held by the
	// session.
	Complete(ctx context.Context, id int, sessionID string, scoreTeam1, scoreTeam2, winnerID int) (*models.Match, error)
	// ReleaseHolder clears the holder of an in-progress match without
	// changing its status. Administrative override for vanished sessions.
	ReleaseHolder(ctx context.Context, id int) (*models.Match, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `id, tournament_id, team1_id, team2_id, round, court, status,
		score_team1, score_team2, winner_id, referee_session_id, created_at`

func scanMatch(rowScanner interface{ Scan(...interface{}) error }) (*models.Match, error) {
	m := &models.Match{}
	err := rowScanner.Scan(
		&m.ID,
		&m.TournamentID,
		&m.Team1ID,
		&m.Team2ID,
		&m.Round,
		&m.Court,
		&m.Status,
		&m.ScoreTeam1,
		&m.ScoreTeam2,
		&m.WinnerID,
		&m.RefereeSessionID,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) CreateBatch(ctx context.Context, exec SQLExecutor, matches []*models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches (tournament_id, team1_id, team2_id, round, court, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	for _, match := range matches {
		if match.Status == "" {
			match.Status = models.MatchStatusPending
		}
		err := executor.QueryRowContext(ctx, query,
			match.TournamentID,
			match.Team1ID,
			match.Team2ID,
			match.Round,
			match.Court,
			match.Status,
		).Scan(&match.ID, &match.CreatedAt)
		if err != nil {
			return r.handleMatchError(err)
		}
		if err := publishChange(ctx, executor, MatchesChannel, ChangeInsert, match); err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	return scanMatch(r.db.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, status *models.MatchStatus) ([]*models.Match, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	if status != nil {
		queryBuilder.WriteString(" AND status = $" + strconv.Itoa(len(args)+1))
		args = append(args, *status)
	}
	queryBuilder.WriteString(" ORDER BY round ASC, court ASC, id ASC")

	rows, err := r.db.QueryContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) CountByTournamentAndStatus(ctx context.Context, tournamentID int, status models.MatchStatus) (int, error) {
	query := `SELECT COUNT(*) FROM matches WHERE tournament_id = $1 AND status = $2`
	var count int
	if err := r.db.QueryRowContext(ctx, query, tournamentID, status).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *postgresMatchRepository) ClaimForSession(ctx context.Context, id int, sessionID string) (*models.Match, error) {
	query := `
		UPDATE matches
		SET status = $3, referee_session_id = $2
		WHERE id = $1
		  AND status <> $4
		  AND (referee_session_id IS NULL OR referee_session_id = $2)
		RETURNING ` + matchColumns
	return r.conditionalUpdate(ctx, query, id, sessionID, models.MatchStatusInProgress, models.MatchStatusCompleted)
}

func (r *postgresMatchRepository) AdjustScore(ctx context.Context, id int, sessionID string, teamSlot, delta int) (*models.Match, error) {
	column := "score_team1"
	if teamSlot == 2 {
		column = "score_team2"
	}
	// The delta is applied against the current durable value in one
	// statement, clamped at zero, so concurrent adjustments never blind
	// overwrite each other.
	query := fmt.Sprintf(`
		UPDATE matches
		SET %s = GREATEST(%s + $3, 0)
		WHERE id = $1
		  AND status = $4
		  AND referee_session_id = $2
		RETURNING `+matchColumns, column, column)
	return r.conditionalUpdate(ctx, query, id, sessionID, delta, models.MatchStatusInProgress)
}

func (r *postgresMatchRepository) Complete(ctx context.Context, id int, sessionID string, scoreTeam1, scoreTeam2, winnerID int) (*models.Match, error) {
	query := `
		UPDATE matches
		SET score_team1 = $3, score_team2 = $4, winner_id = $5,
		    status = $6, referee_session_id = NULL
		WHERE id = $1
		  AND status = $7
		  AND referee_session_id = $2
		RETURNING ` + matchColumns
	return r.conditionalUpdate(ctx, query, id, sessionID,
		scoreTeam1, scoreTeam2, winnerID, models.MatchStatusCompleted, models.MatchStatusInProgress)
}

func (r *postgresMatchRepository) ReleaseHolder(ctx context.Context, id int) (*models.Match, error) {
	query := `
		UPDATE matches
		SET referee_session_id = NULL
		WHERE id = $1 AND status = $2
		RETURNING ` + matchColumns
	return r.conditionalUpdate(ctx, query, id, models.MatchStatusInProgress)
}

// conditionalUpdate runs a guarded UPDATE ... RETURNING together with
// its change notification in one transaction, so the notification only
// fires once the row change is durable. A non-matching guard yields
// ErrMatchConditionFailed.
func (r *postgresMatchRepository) conditionalUpdate(ctx context.Context, query string, args ...interface{}) (*models.Match, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	match, err := scanMatch(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		_ = tx.Rollback()
		if errors.Is(err, ErrMatchNotFound) {
			return nil, ErrMatchConditionFailed
		}
		return nil, err
	}

	if err := publishChange(ctx, tx, MatchesChannel, ChangeUpdate, match); err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit match update: %w", err)
	}
	return match, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23503" { // foreign_key_violation
			switch pqErr.Constraint {
			case "matches_tournament_id_fkey":
				return ErrMatchTournamentInvalid
			case "matches_team1_id_fkey", "matches_team2_id_fkey", "matches_winner_id_fkey":
				return ErrMatchTeamInvalid
			}
		}
	}
	return err
}
