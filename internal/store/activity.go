package store

import "github.com/couchcryptid/reliefops/internal/domain"

// Activity returns a copy of the activity feed, newest first.
func (s *Store) Activity() []domain.ChangeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChangeEvent(nil), s.activity...)
}

// RecordChangeEvent appends an event to the bounded activity feed,
// assigning id and timestamp if missing. When a sink is configured the
// event is also published asynchronously; publish failures are logged and
// never affect local state.
func (s *Store) RecordChangeEvent(ev domain.ChangeEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordEventLocked(ev)
}

func (s *Store) recordEventLocked(ev domain.ChangeEvent) {
	if ev.ID == "" {
		ev.ID = domain.NewID()
	}
	if ev.RecordedAt.IsZero() {
		ev.RecordedAt = s.clock.Now()
	}

	s.activity = append([]domain.ChangeEvent{ev}, s.activity...)
	if len(s.activity) > domain.ActivityLogCap {
		s.activity = s.activity[:domain.ActivityLogCap]
	}
	if s.metrics != nil {
		s.metrics.ActivityLogSize.Set(float64(len(s.activity)))
	}

	if s.sink != nil {
		go s.publishEvent(ev)
	}
}

func (s *Store) publishEvent(ev domain.ChangeEvent) {
	if err := s.sink.Publish(s.baseCtx, ev); err != nil {
		if s.metrics != nil {
			s.metrics.EventPublishErrors.Inc()
		}
		s.logger.Error("change event publish failed", "event", ev.ID, "kind", ev.Kind, "error", err)
		return
	}
	if s.metrics != nil {
		s.metrics.EventsPublished.Inc()
	}
}
