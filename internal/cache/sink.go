package cache

import (
	"log/slog"

	"github.com/Junaidchm/DevHuddle-Client-sub001/internal/realtime"
)

// Sink applies realtime events to a Store for one subject.
type Sink struct {
	store     *Store
	subjectID string
	logger    *slog.Logger
}

// NewSink returns an EventSink that invalidates store entries for subjectID.
func NewSink(store *Store, subjectID string, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		store:     store,
		subjectID: subjectID,
		logger:    logger.With("subject_id", subjectID),
	}
}

var _ realtime.EventSink = (*Sink)(nil)

// OnEvent implements realtime.EventSink.
//
// A payload that fails to decode still invalidates the affected queries;
// the next fetch recovers the data.
func (s *Sink) OnEvent(event realtime.InboundEvent) {
	switch event.Kind {
	case realtime.KindNotificationCreated:
		var p realtime.NotificationCreated
		if err := event.Decode(&p); err != nil {
			s.logger.Warn("bad notification payload", "error", err)
			s.store.Invalidate(KindNotifications, s.subjectID)
			s.store.Invalidate(KindUnreadCount, s.subjectID)
			return
		}
		s.store.AddNotification(s.subjectID, Notification{
			ID:        p.ID,
			Type:      p.Type,
			ActorID:   p.ActorID,
			EntityID:  p.EntityID,
			Message:   p.Message,
			CreatedAt: p.CreatedAt,
		})

	case realtime.KindUnreadCountUpdate:
		var p realtime.UnreadCountUpdate
		if err := event.Decode(&p); err != nil {
			s.logger.Warn("bad unread count payload", "error", err)
			s.store.Invalidate(KindUnreadCount, s.subjectID)
			return
		}
		s.store.SetUnreadCount(s.subjectID, p.UnreadCount)

	default:
		s.store.Invalidate(string(event.Kind), s.subjectID)
	}
}
