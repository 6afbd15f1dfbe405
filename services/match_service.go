package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nghiatd-29581/badminton-tournament-app/models"
	"github.com/nghiatd-29581/badminton-tournament-app/repositories"
)

// MatchService owns the match lifecycle: pending -> in_progress ->
// completed, never backwards. Exclusivity is enforced by conditional
// updates against durable storage (holder empty or equal to the
// caller's session), not by process-local locks, so it stays correct
// across multiple server processes.
type MatchService interface {
	Start(ctx context.Context, matchID int, sessionID string) (*models.Match, error)
	AdjustScore(ctx context.Context, matchID int, sessionID string, teamSlot, delta int) (*models.Match, error)
	Finish(ctx context.Context, matchID int, sessionID string, scoreTeam1, scoreTeam2 int) (*models.Match, error)
	ForceRelease(ctx context.Context, matchID int) (*models.Match, error)
	GetByID(ctx context.Context, matchID int) (*models.Match, error)
}

type matchService struct {
	matchRepo repositories.MatchRepository
	standings StandingsService
	logger    *slog.Logger
}

func NewMatchService(
	matchRepo repositories.MatchRepository,
	standings StandingsService,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		matchRepo: matchRepo,
		standings: standings,
		logger:    logger,
	}
}

// Start claims a pending match for the session, or resumes an
// in-progress match already held by the same session (reconnect).
// A match held by a different session yields a conflict.
func (s *matchService) Start(ctx context.Context, matchID int, sessionID string) (*models.Match, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}

	match, err := s.matchRepo.ClaimForSession(ctx, matchID, sessionID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchConditionFailed) {
			return nil, s.classifyFailedUpdate(ctx, matchID, sessionID)
		}
		return nil, err
	}
	return match, nil
}

// AdjustScore applies a +1/-1 delta to one team's score, clamped at
// zero. Only the holding session may adjust, and each press is its own
// durable write.
func (s *matchService) AdjustScore(ctx context.Context, matchID int, sessionID string, teamSlot, delta int) (*models.Match, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	if teamSlot != 1 && teamSlot != 2 {
		return nil, ErrTeamSlotInvalid
	}
	if delta != 1 && delta != -1 {
		return nil, ErrScoreDeltaInvalid
	}

	match, err := s.matchRepo.AdjustScore(ctx, matchID, sessionID, teamSlot, delta)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchConditionFailed) {
			return nil, s.classifyFailedUpdate(ctx, matchID, sessionID)
		}
		return nil, err
	}
	return match, nil
}

// Finish transitions the match to completed with final scores and a
// winner, clears the holder and applies the result to the standings
// exactly once. A tie is rejected before any mutation. If the standings
// step fails the match stays completed (already durable) and
// ErrStandingsNotApplied is returned so the caller or the
// reconciliation pass can repair it.
func (s *matchService) Finish(ctx context.Context, matchID int, sessionID string, scoreTeam1, scoreTeam2 int) (*models.Match, error) {
	if sessionID == "" {
		return nil, ErrSessionRequired
	}
	if scoreTeam1 < 0 || scoreTeam2 < 0 {
		return nil, ErrFinalScoreInvalid
	}
	if scoreTeam1 == scoreTeam2 {
		return nil, ErrDrawNotAllowed
	}

	current, err := s.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	winnerID := current.Team1ID
	if scoreTeam2 > scoreTeam1 {
		winnerID = current.Team2ID
	}

	match, err := s.matchRepo.Complete(ctx, matchID, sessionID, scoreTeam1, scoreTeam2, winnerID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchConditionFailed) {
			return nil, s.classifyFailedUpdate(ctx, matchID, sessionID)
		}
		return nil, err
	}

	if applyErr := s.standings.ApplyResult(ctx, match); applyErr != nil {
		s.logger.Error("standings update failed after match completion",
			slog.Int("match_id", match.ID),
			slog.Int("tournament_id", match.TournamentID),
			slog.Any("error", applyErr))
		return match, fmt.Errorf("%w: %v", ErrStandingsNotApplied, applyErr)
	}
	return match, nil
}

// ForceRelease clears the holder of an in-progress match so another
// session can claim it. There is no automatic timeout for vanished
// sessions; this is the administrative override.
func (s *matchService) ForceRelease(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.ReleaseHolder(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchConditionFailed) {
			current, getErr := s.GetByID(ctx, matchID)
			if getErr != nil {
				return nil, getErr
			}
			if current.Status == models.MatchStatusCompleted {
				return nil, ErrMatchAlreadyCompleted
			}
			return nil, ErrMatchNotInProgress
		}
		return nil, err
	}
	s.logger.Info("match holder force-released", slog.Int("match_id", matchID))
	return match, nil
}

func (s *matchService) GetByID(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

// classifyFailedUpdate re-fetches a match after a conditional update
// matched no row and maps the current state to the right error.
func (s *matchService) classifyFailedUpdate(ctx context.Context, matchID int, sessionID string) error {
	match, err := s.GetByID(ctx, matchID)
	if err != nil {
		return err
	}
	switch {
	case match.Status == models.MatchStatusCompleted:
		return ErrMatchAlreadyCompleted
	case match.Status == models.MatchStatusPending:
		return ErrMatchNotInProgress
	case match.RefereeSessionID == nil:
		return ErrMatchNotHeldBySession
	case !match.HeldBy(sessionID):
		return ErrMatchHeldByOtherSession
	default:
		// The precondition held on re-read; the original failure was a
		// transient race. Callers retry.
		return fmt.Errorf("match %d update failed transiently: %w", matchID, repositories.ErrMatchConditionFailed)
	}
}
