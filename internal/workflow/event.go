// Package workflow evaluates incoming events (messages, schedule fires,
// metric crossings) against a tenant's WorkflowRule set and produces the
// actions the runtime should execute.
package workflow

import "time"

// EventType enumerates the kinds of events the engine can evaluate.
type EventType string

const (
	EventMessage      EventType = "message"
	EventSchedule     EventType = "schedule"
	EventChannel      EventType = "channel_event"
	EventMetric       EventType = "metric"
	EventStartup      EventType = "startup"
)

// Event is one occurrence the workflow engine evaluates against every
// enabled rule.
type Event struct {
	Type      EventType
	Source    string // channel name, "scheduler", or "system"
	Data      map[string]any
	Timestamp time.Time
}

// NewMessageEvent builds an incoming-message event.
func NewMessageEvent(channel, sender, text, chatID string) Event {
	return Event{
		Type:   EventMessage,
		Source: channel,
		Data: map[string]any{
			"sender":  sender,
			"text":    text,
			"chat_id": chatID,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewChannelEvent builds a channel-lifecycle event (member joined, bot
// added to a group, etc).
func NewChannelEvent(channel, eventName string) Event {
	return Event{
		Type:   EventChannel,
		Source: channel,
		Data: map[string]any{
			"event": eventName,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewScheduleEvent builds the event a fired scheduler task publishes.
func NewScheduleEvent(taskName string) Event {
	return Event{
		Type:      EventSchedule,
		Source:    "scheduler",
		Data:      map[string]any{"task": taskName},
		Timestamp: time.Now().UTC(),
	}
}

// NewMetricEvent builds a metric-sample event.
func NewMetricEvent(name string, value float64) Event {
	return Event{
		Type:      EventMetric,
		Source:    "system",
		Data:      map[string]any{"metric": name, "value": value},
		Timestamp: time.Now().UTC(),
	}
}

// NewStartupEvent builds the one-shot event fired when an agent process
// comes up.
func NewStartupEvent() Event {
	return Event{Type: EventStartup, Source: "system", Data: map[string]any{}, Timestamp: time.Now().UTC()}
}

func (e Event) str(key string) string {
	v, ok := e.Data[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (e Event) num(key string) float64 {
	v, ok := e.Data[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	}
	return 0
}
