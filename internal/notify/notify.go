// Package notify delivers templated notification emails.
package notify

import (
	"context"
	"errors"
)

// Message is one templated email. Params is a flat map of template fields.
type Message struct {
	ServiceID  string            `json:"service_id"`
	TemplateID string            `json:"template_id"`
	Params     map[string]string `json:"template_params"`
}

// Result describes an accepted delivery.
type Result struct {
	Status    int    `json:"status"`
	Text      string `json:"text"`
	Transport string `json:"transport"`
}

// Credentials authenticate against the email API. PrivateKey is only set in
// trusted deployments.
type Credentials struct {
	PublicKey  string
	PrivateKey string
}

// Sender delivers a Message once. Implementations do not retry.
type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
}

// ErrRejected indicates the transport refused the message.
var ErrRejected = errors.New("notify: message rejected")
