package protocol

// Content keys for every event the sim emits. Rendering is left to the notification layer.
const (
	EventGatherStarted     = "event.world.gather_started"
	EventGatherCompleted   = "event.world.gather_completed"
	EventAmbushTriggered   = "event.world.ambush_triggered"
	EventAmbushResolved    = "event.world.ambush_resolved"
	EventLifecycleOpened   = "event.world.lifecycle_opened"
	EventLifecycleLocked   = "event.world.lifecycle_locked"
	EventLifecycleArchived = "event.world.lifecycle_archived"
	EventLifecycleReset    = "event.world.lifecycle_reset"
)

var knownContentKeys = map[string]struct{}{
	EventGatherStarted:     {},
	EventGatherCompleted:   {},
	EventAmbushTriggered:   {},
	EventAmbushResolved:    {},
	EventLifecycleOpened:   {},
	EventLifecycleLocked:   {},
	EventLifecycleArchived: {},
	EventLifecycleReset:    {},
}

func IsKnownContentKey(key string) bool {
	_, ok := knownContentKeys[key]
	return ok
}

type Event struct {
	ContentKey string            `json:"content_key"`
	Tokens     map[string]string `json:"tokens"`
}

func NewEvent(key string, tokens map[string]string) Event {
	if tokens == nil {
		tokens = map[string]string{}
	}
	return Event{ContentKey: key, Tokens: tokens}
}

// Clone returns a copy whose token map is not shared with e.
func (e Event) Clone() Event {
	out := Event{ContentKey: e.ContentKey, Tokens: make(map[string]string, len(e.Tokens))}
	for k, v := range e.Tokens {
		out.Tokens[k] = v
	}
	return out
}

// ContentKeys lists the keys of evs in order; handy for assertions and logs.
func ContentKeys(evs []Event) []string {
	out := make([]string, 0, len(evs))
	for _, e := range evs {
		out = append(out, e.ContentKey)
	}
	return out
}
