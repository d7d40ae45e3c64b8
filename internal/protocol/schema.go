package protocol

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const eventSchemaURL = "https://realmclock.ai/schemas/event.schema.json"

//go:embed schemas/event.schema.json
var eventSchemaJSON string

var (
	eventSchemaOnce sync.Once
	eventSchema     *jsonschema.Schema
	eventSchemaErr  error
)

// EventSchema returns the compiled schema every published event record must satisfy.
func EventSchema() (*jsonschema.Schema, error) {
	eventSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(eventSchemaURL, strings.NewReader(eventSchemaJSON)); err != nil {
			eventSchemaErr = fmt.Errorf("event schema: %w", err)
			return
		}
		eventSchema, eventSchemaErr = c.Compile(eventSchemaURL)
	})
	return eventSchema, eventSchemaErr
}

// ValidateEvent checks e against the event schema. The schema validator works on decoded
// JSON, so the event is round-tripped first.
func ValidateEvent(e Event) error {
	s, err := EventSchema()
	if err != nil {
		return err
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
