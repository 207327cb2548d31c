// Package event defines the routing envelope and order event carried through
// the queue, and the parsing/validation applied to every raw delivery before
// any side effect happens.
package event

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ErrMalformedEnvelope classifies input that cannot be parsed or fails shape
// validation. The consumer reports such deliveries as failed without retrying
// the parse; bounded redelivery and eventual dead-lettering stay with the
// queue's max-receive-count policy.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope is the routing wrapper around a domain payload: classification
// tags plus the serialized detail. The shape follows the bus event format
// used upstream.
type Envelope struct {
	ID         string          `json:"id,omitempty"`
	Source     string          `json:"source"`
	DetailType string          `json:"detail-type"`
	Detail     json.RawMessage `json:"detail"`
}

// Open parses a raw delivery body into an Envelope. It is pure: no side
// effects, safe to call before any claim is made.
func Open(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrMalformedEnvelope, "empty body")
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, errors.Wrapf(ErrMalformedEnvelope, "cannot decode body: %s", err)
	}
	if env.Source == "" || env.DetailType == "" {
		return nil, errors.Wrap(ErrMalformedEnvelope, "missing source or detail-type")
	}
	if len(env.Detail) == 0 {
		return nil, errors.Wrap(ErrMalformedEnvelope, "missing detail")
	}
	return &env, nil
}

// Order extracts and validates the OrderEvent carried in the detail.
func (e *Envelope) Order() (*OrderEvent, error) {
	var ord OrderEvent
	if err := json.Unmarshal(e.Detail, &ord); err != nil {
		return nil, errors.Wrapf(ErrMalformedEnvelope, "cannot decode detail: %s", err)
	}
	if err := ord.Validate(); err != nil {
		return nil, err
	}
	return &ord, nil
}
