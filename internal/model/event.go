package model

import (
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// EventType identifies one kind of progress event.
type EventType string

const (
	EventStatus            EventType = "status"
	EventDocumentsReady    EventType = "documents_ready"
	EventAnomaliesDetected EventType = "anomalies_detected"
	EventChatSeeded        EventType = "chat_seeded"
	EventPolicyAssessed    EventType = "policy_assessed"
	EventSummaryChunk      EventType = "summary_chunk"
	EventPackageReady      EventType = "package_ready"
	EventComplete          EventType = "complete"
	EventError             EventType = "error"
)

// Terminal reports whether the event closes its run.
func (t EventType) Terminal() bool {
	return t == EventComplete || t == EventError
}

// EventPayload is the closed set of payload shapes. Each event type maps
// to exactly one payload struct; nothing else satisfies the interface.
type EventPayload interface {
	sealedPayload()
}

// StatusPayload carries a human-readable progress message.
type StatusPayload struct {
	Message string `json:"message"`
}

// CountPayload carries an item count for documents_ready,
// anomalies_detected, and policy_assessed events.
type CountPayload struct {
	Count int `json:"count"`
}

// ChatSeededPayload carries the synthetic transcript length.
type ChatSeededPayload struct {
	Messages int `json:"messages"`
}

// SummaryChunkPayload carries one incremental narrative chunk.
type SummaryChunkPayload struct {
	Text string `json:"text"`
}

// PackageReadyPayload carries the archive location.
type PackageReadyPayload struct {
	Path string `json:"path"`
}

// CompletePayload closes a successful run.
type CompletePayload struct {
	ManifestPath string `json:"manifest_path"`
	PackagePath  string `json:"package_path"`
}

// ErrorPayload closes a failed run.
type ErrorPayload struct {
	Message string `json:"message"`
}

func (StatusPayload) sealedPayload()       {}
func (CountPayload) sealedPayload()        {}
func (ChatSeededPayload) sealedPayload()   {}
func (SummaryChunkPayload) sealedPayload() {}
func (PackageReadyPayload) sealedPayload() {}
func (CompletePayload) sealedPayload()     {}
func (ErrorPayload) sealedPayload()        {}

// ProgressEvent is one entry of a run's append-only event log.
// SequenceNo values are strictly increasing per run with no gaps.
type ProgressEvent struct {
	RunID      string       `json:"run_id"`
	SequenceNo uint64       `json:"sequence_no"`
	Type       EventType    `json:"event"`
	Payload    EventPayload `json:"payload"`
	EmittedAt  time.Time    `json:"emitted_at"`
}

// progressEventWire mirrors ProgressEvent with a raw payload for decoding.
type progressEventWire struct {
	RunID      string          `json:"run_id"`
	SequenceNo uint64          `json:"sequence_no"`
	Type       EventType       `json:"event"`
	Payload    json.RawMessage `json:"payload"`
	EmittedAt  time.Time       `json:"emitted_at"`
}

// UnmarshalJSON decodes the payload into the struct matching the event type.
func (e *ProgressEvent) UnmarshalJSON(data []byte) error {
	var wire progressEventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return eris.Wrap(err, "event: unmarshal envelope")
	}

	var payload EventPayload
	switch wire.Type {
	case EventStatus:
		payload = &StatusPayload{}
	case EventDocumentsReady, EventAnomaliesDetected, EventPolicyAssessed:
		payload = &CountPayload{}
	case EventChatSeeded:
		payload = &ChatSeededPayload{}
	case EventSummaryChunk:
		payload = &SummaryChunkPayload{}
	case EventPackageReady:
		payload = &PackageReadyPayload{}
	case EventComplete:
		payload = &CompletePayload{}
	case EventError:
		payload = &ErrorPayload{}
	default:
		return eris.Errorf("event: unknown type %q", wire.Type)
	}

	if len(wire.Payload) > 0 {
		if err := json.Unmarshal(wire.Payload, payload); err != nil {
			return eris.Wrapf(err, "event: unmarshal %s payload", wire.Type)
		}
	}

	e.RunID = wire.RunID
	e.SequenceNo = wire.SequenceNo
	e.Type = wire.Type
	e.Payload = payload
	e.EmittedAt = wire.EmittedAt
	return nil
}
