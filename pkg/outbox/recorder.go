package outbox

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Recorder is an in-memory Emitter for services running without a database.
type Recorder struct {
	mu     sync.Mutex
	events []DomainEvent
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(_ context.Context, _ *gorm.DB, event DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events in emission order.
func (r *Recorder) Events() []DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]DomainEvent(nil), r.events...)
}
