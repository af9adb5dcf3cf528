// Package webhooks delivers filechain events to configured HTTP endpoints.
// Each delivery is a JSON POST signed with HMAC-SHA256 over the body.
package webhooks

import "time"

// Event types dispatched by the system.
const (
	EventLedgerAppended = "ledger.appended"
	EventHealthDegraded = "health.degraded"
)

// SignatureHeader carries "sha256=<hex hmac>" of the request body.
const SignatureHeader = "X-Filechain-Signature"

// Subscription is one configured delivery target. An empty Events list
// subscribes to every event.
type Subscription struct {
	URL    string   `json:"url"    mapstructure:"url"`
	Secret string   `json:"-"      mapstructure:"secret"`
	Events []string `json:"events" mapstructure:"events"`
}

// Wants reports whether the subscription receives eventType.
func (s Subscription) Wants(eventType string) bool {
	if len(s.Events) == 0 {
		return true
	}
	for _, e := range s.Events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}

// Event is the JSON body POSTed to subscribers.
type Event struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}
