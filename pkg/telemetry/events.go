package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types emitted during plan execution.
const (
	EventPlanCreated     = "plan.created"
	EventPlanStarted     = "plan.started"
	EventPlanCompleted   = "plan.completed"
	EventPlanFailed      = "plan.failed"
	EventPlanCancelled   = "plan.cancelled"
	EventPlanPaused      = "plan.paused"
	EventPlanResumed     = "plan.resumed"
	EventPhaseStarted    = "phase.started"
	EventPhaseCompleted  = "phase.completed"
	EventPhaseFailed     = "phase.failed"
	EventPhaseRolledBack = "phase.rolled_back"
	EventTaskStarted     = "task.started"
	EventTaskCompleted   = "task.completed"
	EventTaskFailed      = "task.failed"
	EventTaskRetried     = "task.retried"
	EventRollbackStarted = "rollback.started"
	EventRollbackDone    = "rollback.completed"
	EventRecoveryPoint   = "recovery.point_created"
)

// Event levels.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Event represents a lifecycle event emitted by the migration engine.
type Event struct {
	ID        string                 `json:"id"`
	Timestamp time.Time              `json:"timestamp"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Level     string                 `json:"level"`
	PlanID    string                 `json:"planId,omitempty"`
	PhaseID   string                 `json:"phaseId,omitempty"`
	TaskID    string                 `json:"taskId,omitempty"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// EventHandler receives published events.
type EventHandler func(event Event)

// EventFilter decides whether an event is delivered to subscribers.
type EventFilter func(event Event) bool

// EventPublisher delivers lifecycle events to registered subscribers.
type EventPublisher struct {
	config      EventsConfig
	subscribers []EventHandler
	filters     []EventFilter
	buffer      chan Event
	mu          sync.RWMutex
	wg          sync.WaitGroup
	done        chan struct{}
	closed      bool
}

// NewEventPublisher creates a new event publisher.
func NewEventPublisher(cfg EventsConfig) *EventPublisher {
	p := &EventPublisher{
		config: cfg,
		buffer: make(chan Event, cfg.BufferSize),
		done:   make(chan struct{}),
	}

	if cfg.Enabled && cfg.EnableAsync {
		p.wg.Add(1)
		go p.dispatchLoop()
	}

	return p
}

// Subscribe registers a handler for published events.
func (p *EventPublisher) Subscribe(handler EventHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscribers = append(p.subscribers, handler)
}

// AddFilter registers a filter. An event is delivered only if every
// filter accepts it.
func (p *EventPublisher) AddFilter(filter EventFilter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filters = append(p.filters, filter)
}

// Publish delivers an event to all subscribers. Missing ID and
// Timestamp fields are filled in.
func (p *EventPublisher) Publish(event Event) {
	if !p.config.Enabled {
		return
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Level == "" {
		event.Level = LevelInfo
	}
	if event.Source == "" {
		event.Source = "cutover"
	}

	if p.config.EnableAsync {
		p.mu.RLock()
		closed := p.closed
		p.mu.RUnlock()
		if closed {
			return
		}
		select {
		case p.buffer <- event:
		default:
			// Buffer full, drop rather than block execution.
		}
		return
	}

	p.dispatch(event)
}

// PublishPlanEvent publishes a plan-scoped event.
func (p *EventPublisher) PublishPlanEvent(eventType, planID, message string) {
	p.Publish(Event{
		Type:    eventType,
		PlanID:  planID,
		Message: message,
	})
}

// PublishPhaseEvent publishes a phase-scoped event.
func (p *EventPublisher) PublishPhaseEvent(eventType, planID, phaseID, message string) {
	p.Publish(Event{
		Type:    eventType,
		PlanID:  planID,
		PhaseID: phaseID,
		Message: message,
	})
}

// PublishTaskEvent publishes a task-scoped event.
func (p *EventPublisher) PublishTaskEvent(eventType, planID, phaseID, taskID, message string, data map[string]interface{}) {
	level := LevelInfo
	if eventType == EventTaskFailed {
		level = LevelError
	}
	p.Publish(Event{
		Type:    eventType,
		Level:   level,
		PlanID:  planID,
		PhaseID: phaseID,
		TaskID:  taskID,
		Message: message,
		Data:    data,
	})
}

func (p *EventPublisher) dispatchLoop() {
	defer p.wg.Done()
	for {
		select {
		case event := <-p.buffer:
			p.dispatch(event)
		case <-p.done:
			// Drain remaining buffered events before exiting.
			for {
				select {
				case event := <-p.buffer:
					p.dispatch(event)
				default:
					return
				}
			}
		}
	}
}

func (p *EventPublisher) dispatch(event Event) {
	p.mu.RLock()
	filters := p.filters
	subscribers := p.subscribers
	p.mu.RUnlock()

	for _, filter := range filters {
		if !filter(event) {
			return
		}
	}

	for _, handler := range subscribers {
		handler(event)
	}
}

// Shutdown stops the publisher, draining buffered events first.
func (p *EventPublisher) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if !p.config.Enabled || !p.config.EnableAsync {
		return nil
	}

	close(p.done)

	finished := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FilterByLevel accepts only events at or above the given level.
func FilterByLevel(level string) EventFilter {
	rank := map[string]int{LevelInfo: 0, LevelWarn: 1, LevelError: 2}
	min := rank[level]
	return func(event Event) bool {
		return rank[event.Level] >= min
	}
}

// FilterByType accepts only events of the given types.
func FilterByType(types ...string) EventFilter {
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	return func(event Event) bool {
		return allowed[event.Type]
	}
}

// FilterByPlanID accepts only events for the given plan.
func FilterByPlanID(planID string) EventFilter {
	return func(event Event) bool {
		return event.PlanID == planID
	}
}
