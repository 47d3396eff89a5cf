// Package model defines the chat model vocabulary and the registry that
// resolves model names requested by clients against the configured catalog.
package model

import "errors"

// ErrNotSupported indicates the requested model name is not in the
// configured catalog. Returned before any state is mutated.
var ErrNotSupported = errors.New("model not supported")

// Provider identifies where a model runs.
type Provider string

const (
	// ProviderLocal is a model served by a local runtime (Ollama).
	ProviderLocal Provider = "local"

	// ProviderHosted is a model served by a hosted API (Google AI).
	ProviderHosted Provider = "hosted"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	return p == ProviderLocal || p == ProviderHosted
}

// Ref is an immutable reference to a chat model. Identity is Name:
// two refs with the same name refer to the same model.
type Ref struct {
	Provider    Provider `json:"provider"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
}

// Configured is a catalog entry: a model reference plus the credentials
// needed to reach it. Credentials never leave the server.
type Configured struct {
	Provider    Provider
	Name        string
	Description string
	APIKey      string
	Endpoint    string
}

// Ref strips the credential fields for use in client-facing payloads.
func (c Configured) Ref() Ref {
	return Ref{Provider: c.Provider, Name: c.Name, Description: c.Description}
}
