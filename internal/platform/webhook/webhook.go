// Package webhook delivers assessment lifecycle events to subscriber
// endpoints over HTTP. Payloads are HMAC-SHA256 signed, every attempt is
// recorded, and failed deliveries are retried on a backoff schedule.
package webhook

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event types the assessment service emits. Subscriptions may also use
// wildcard patterns ("assessment.*", "*.deleted").
const (
	EventEndpointTest = "endpoint.test"
)

// Endpoint is a registered subscriber destination.
type Endpoint struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Secret    string    `json:"secret,omitempty"`
	Events    []string  `json:"events"`
	TenantID  string    `json:"tenant_id"`
	ClientID  string    `json:"client_id,omitempty"`
	Paused    bool      `json:"paused"`
	CreatedAt time.Time `json:"created_at"`
}

// subscribesTo reports whether the endpoint's subscription list covers the
// event type, honoring "prefix.*" and "*.suffix" wildcards.
func (e *Endpoint) subscribesTo(eventType string) bool {
	for _, pat := range e.Events {
		switch {
		case pat == eventType:
			return true
		case strings.HasSuffix(pat, ".*") && strings.HasPrefix(eventType, pat[:len(pat)-1]):
			return true
		case strings.HasPrefix(pat, "*.") && strings.HasSuffix(eventType, pat[1:]):
			return true
		}
	}
	return false
}

// Event is one domain occurrence fanned out to subscribers.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Resource   string          `json:"resource"`
	ResourceID string          `json:"resource_id"`
	TenantID   string          `json:"tenant_id"`
	Data       json.RawMessage `json:"data"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Delivery records one HTTP attempt against one endpoint.
type Delivery struct {
	ID         string        `json:"id"`
	EndpointID string        `json:"endpoint_id"`
	EventID    string        `json:"event_id"`
	EventType  string        `json:"event_type"`
	Payload    []byte        `json:"payload"`
	Signature  string        `json:"signature"`
	StatusCode int           `json:"status_code"`
	Response   string        `json:"response,omitempty"`
	Elapsed    time.Duration `json:"elapsed_ns"`
	Attempt    int           `json:"attempt"`
	Succeeded  bool          `json:"succeeded"`
	Error      string        `json:"error,omitempty"`
	At         time.Time     `json:"at"`
}

// Sign computes the hex HMAC-SHA256 of payload under secret. Subscribers
// verify it against the X-Cardia-Signature header.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches Sign(payload, secret)
// in constant time.
func VerifySignature(payload []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(payload, secret)), []byte(signature))
}

func newSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func checkEndpointURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if s := strings.ToLower(u.Scheme); s != "http" && s != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}

func newEventID() string {
	return uuid.New().String()
}
