package protocol

import "testing"

func TestValidateEvent_AcceptsKnownKeys(t *testing.T) {
	for key := range knownContentKeys {
		e := NewEvent(key, map[string]string{"world_id": "w1"})
		if err := ValidateEvent(e); err != nil {
			t.Fatalf("validate %s: %v", key, err)
		}
	}
}

func TestValidateEvent_RejectsUnknownKey(t *testing.T) {
	e := NewEvent("event.world.unknown", nil)
	if err := ValidateEvent(e); err == nil {
		t.Fatalf("expected schema rejection for unknown content key")
	}
	if IsKnownContentKey("event.world.unknown") {
		t.Fatalf("unknown key reported as known")
	}
}

func TestEventClone_IsIndependent(t *testing.T) {
	e := NewEvent(EventGatherStarted, map[string]string{"march_id": "m1"})
	c := e.Clone()
	c.Tokens["march_id"] = "changed"
	if e.Tokens["march_id"] != "m1" {
		t.Fatalf("clone shares token map")
	}
	keys := ContentKeys([]Event{e, NewEvent(EventGatherCompleted, nil)})
	if len(keys) != 2 || keys[1] != EventGatherCompleted {
		t.Fatalf("ContentKeys=%v", keys)
	}
}
