package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nghiatd-29581/badminton-tournament-app/models"
)

var ErrStandingNotFound = errors.New("standing not found")

type StandingRepository interface {
	BatchCreate(ctx context.Context, exec SQLExecutor, standings []*models.Standing) error
	GetByTournamentAndTeam(ctx context.Context, exec SQLExecutor, tournamentID, teamID int) (*models.Standing, error)
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Standing, error)

	// ApplyResult increments points and the wins or losses counter of
	// one team's row as a single read-modify-write statement against the
	// durable value, so concurrent finishes touching the same team never
	// lose an update and a reader never sees points changed without the
	// paired wins/losses change.
	ApplyResult(ctx context.Context, exec SQLExecutor, tournamentID, teamID, pointsDelta, winsDelta, lossesDelta int) error
	// ResetByTournament zeroes every row of the tournament, used by the
	// from-scratch recomputation path.
	ResetByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
	// SumGames returns the total wins+losses recorded across the
	// tournament's standings rows.
	SumGames(ctx context.Context, tournamentID int) (int, error)
}

type postgresStandingRepository struct {
	db *sql.DB
}

func NewPostgresStandingRepository(db *sql.DB) StandingRepository {
	return &postgresStandingRepository{db: db}
}

func (r *postgresStandingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresStandingRepository) BatchCreate(ctx context.Context, exec SQLExecutor, standings []*models.Standing) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO standings (tournament_id, team_id, points, wins, losses)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, updated_at`

	for _, standing := range standings {
		err := executor.QueryRowContext(ctx, query,
			standing.TournamentID,
			standing.TeamID,
			standing.Points,
			standing.Wins,
			standing.Losses,
		).Scan(&standing.ID, &standing.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create standing for team %d: %w", standing.TeamID, err)
		}
		if err := publishChange(ctx, executor, StandingsChannel, ChangeInsert, standing); err != nil {
			return err
		}
	}
	return nil
}

func scanStanding(rowScanner interface{ Scan(...interface{}) error }) (*models.Standing, error) {
	s := &models.Standing{}
	err := rowScanner.Scan(
		&s.ID,
		&s.TournamentID,
		&s.TeamID,
		&s.Points,
		&s.Wins,
		&s.Losses,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStandingNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *postgresStandingRepository) GetByTournamentAndTeam(ctx context.Context, exec SQLExecutor, tournamentID, teamID int) (*models.Standing, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, team_id, points, wins, losses, updated_at
		FROM standings
		WHERE tournament_id = $1 AND team_id = $2`
	return scanStanding(executor.QueryRowContext(ctx, query, tournamentID, teamID))
}

// ListByTournament returns standings ranked by points descending, ties
// broken by wins descending, then team id for a stable order.
func (r *postgresStandingRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Standing, error) {
	query := `
		SELECT id, tournament_id, team_id, points, wins, losses, updated_at
		FROM standings
		WHERE tournament_id = $1
		ORDER BY points DESC, wins DESC, team_id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	standings := make([]*models.Standing, 0)
	for rows.Next() {
		s, scanErr := scanStanding(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		standings = append(standings, s)
	}
	return standings, rows.Err()
}

func (r *postgresStandingRepository) ApplyResult(ctx context.Context, exec SQLExecutor, tournamentID, teamID, pointsDelta, winsDelta, lossesDelta int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE standings
		SET points = points + $3, wins = wins + $4, losses = losses + $5, updated_at = NOW()
		WHERE tournament_id = $1 AND team_id = $2
		RETURNING id, tournament_id, team_id, points, wins, losses, updated_at`

	standing, err := scanStanding(executor.QueryRowContext(ctx, query,
		tournamentID, teamID, pointsDelta, winsDelta, lossesDelta))
	if err != nil {
		return err
	}
	return publishChange(ctx, executor, StandingsChannel, ChangeUpdate, standing)
}

func (r *postgresStandingRepository) ResetByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE standings
		SET points = 0, wins = 0, losses = 0, updated_at = NOW()
		WHERE tournament_id = $1`
	if _, err := executor.ExecContext(ctx, query, tournamentID); err != nil {
		return err
	}
	// A bulk reset is not attributable to a single row; consumers treat
	// a DELETE-shaped event as a cue to refetch the whole projection.
	return publishChange(ctx, executor, StandingsChannel, ChangeDelete,
		map[string]int{"tournament_id": tournamentID})
}

func (r *postgresStandingRepository) SumGames(ctx context.Context, tournamentID int) (int, error) {
	query := `SELECT COALESCE(SUM(wins + losses), 0) FROM standings WHERE tournament_id = $1`
	var total int
	if err := r.db.QueryRowContext(ctx, query, tournamentID).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
