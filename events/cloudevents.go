package events

import (
	"fmt"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/GoCodeAlone/colibri/pattern"
)

// CloudEventData is the data section of a CloudEvent built by ToCloudEvent.
type CloudEventData struct {
	Params  pattern.Params `json:"params,omitempty"`
	Payload any            `json:"payload,omitempty"`
}

// ToCloudEvent converts ev into a CloudEvent whose type is the event name.
// The current placeholder values and the payload travel as JSON data; the
// cancellation flags travel as extensions.
func ToCloudEvent(ev Event, source string) (cloudevents.Event, error) {
	ce := cloudevents.NewEvent()
	ce.SetID(newEventID())
	ce.SetSource(source)
	ce.SetType(ev.Name())
	ce.SetTime(time.Now())
	ce.SetSpecVersion(cloudevents.VersionV1)
	ce.SetExtension("cancelable", ev.Cancelable())
	ce.SetExtension("cancelled", ev.Cancelled())

	data := CloudEventData{Params: ev.Params(), Payload: ev.Payload()}
	if len(data.Params) > 0 || data.Payload != nil {
		if err := ce.SetData(cloudevents.ApplicationJSON, data); err != nil {
			return ce, fmt.Errorf("failed to encode event data: %w", err)
		}
	}

	if err := ce.Validate(); err != nil {
		return ce, fmt.Errorf("CloudEvent validation failed: %w", err)
	}
	return ce, nil
}

// newEventID returns a time ordered UUIDv7, falling back to v4.
func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}
