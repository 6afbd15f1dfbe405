package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/nghiatd-29581/badminton-tournament-app/repositories"
)

const (
	feedMinReconnect = 5 * time.Second
	feedMaxReconnect = time.Minute
	feedPingInterval = 90 * time.Second
)

// Event is one inbound change-feed notification. Resync marks a
// synthetic event injected after the underlying connection was
// re-established: anything may have been missed, so consumers must do a
// full refresh instead of incremental application.
type Event struct {
	Channel string
	Change  repositories.ChangeEvent
	Resync  bool
}

// Feed consumes row-change notifications from Postgres LISTEN/NOTIFY
// and forwards them as Events. The transport guarantees neither
// ordering across rows nor exactly-once delivery; consumers must treat
// events as hints and stay idempotent.
type Feed struct {
	listener *pq.Listener
	events   chan Event
	logger   *slog.Logger
}

func NewFeed(dsn string, logger *slog.Logger) *Feed {
	f := &Feed{
		events: make(chan Event, 64),
		logger: logger,
	}
	f.listener = pq.NewListener(dsn, feedMinReconnect, feedMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				logger.Warn("change feed listener event",
					slog.Int("event", int(ev)), slog.Any("error", err))
			}
		})
	return f
}

// Events returns the serialized inbound queue consumed by the
// synchronizer.
func (f *Feed) Events() <-chan Event {
	return f.events
}

// Run subscribes to the change channels and pumps notifications until
// the context is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	defer close(f.events)
	defer f.listener.Close()

	channels := []string{
		repositories.TournamentsChannel,
		repositories.MatchesChannel,
		repositories.StandingsChannel,
	}
	for _, channel := range channels {
		if err := f.listener.Listen(channel); err != nil {
			return err
		}
	}
	f.logger.Info("change feed listening", slog.Any("channels", channels))

	pingTicker := time.NewTicker(feedPingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case notification := <-f.listener.Notify:
			if notification == nil {
				// Connection was lost and re-established; notifications
				// may have been missed in between.
				f.logger.Warn("change feed reconnected, requesting resync")
				f.forward(ctx, Event{Resync: true})
				continue
			}

			var change repositories.ChangeEvent
			if err := json.Unmarshal([]byte(notification.Extra), &change); err != nil {
				f.logger.Error("failed to decode change payload",
					slog.String("channel", notification.Channel), slog.Any("error", err))
				// An undecodable event still signals that something
				// changed; fall back to a resync.
				f.forward(ctx, Event{Resync: true})
				continue
			}
			f.forward(ctx, Event{Channel: notification.Channel, Change: change})

		case <-pingTicker.C:
			// Keeps the connection alive and detects silent drops.
			if err := f.listener.Ping(); err != nil {
				f.logger.Warn("change feed ping failed", slog.Any("error", err))
			}
		}
	}
}

func (f *Feed) forward(ctx context.Context, event Event) {
	select {
	case f.events <- event:
	case <-ctx.Done():
	}
}
