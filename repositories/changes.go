package repositories

import (
	"context"
	"encoding/json"
	"fmt"
)

// Notification channels, one per table. Downstream projections LISTEN
// on these; payloads are ChangeEvent JSON. Delivery is at-least-once
// from the consumer's point of view (a reconnect forces a full resync)
// and carries no ordering guarantee across rows.
const (
	TournamentsChannel = "tournaments_changes"
	MatchesChannel     = "matches_changes"
	StandingsChannel   = "standings_changes"
)

const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// ChangeEvent is the row-level change payload published with pg_notify.
// Row holds the post-change field values of the affected record.
type ChangeEvent struct {
	Op  string          `json:"op"`
	Row json.RawMessage `json:"row"`
}

// publishChange emits a row change on the given channel. When exec is a
// transaction the notification is delivered only at commit, which keeps
// the feed consistent with what actually became durable.
func publishChange(ctx context.Context, exec SQLExecutor, channel, op string, row interface{}) error {
	rowJSON, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal change row for %s: %w", channel, err)
	}
	payload, err := json.Marshal(ChangeEvent{Op: op, Row: rowJSON})
	if err != nil {
		return fmt.Errorf("failed to marshal change event for %s: %w", channel, err)
	}
	if _, err := exec.ExecContext(ctx, `SELECT pg_notify($1, $2)`, channel, string(payload)); err != nil {
		return fmt.Errorf("failed to publish change on %s: %w", channel, err)
	}
	return nil
}
