// Package credential turns the manifest's token reference into a bearer token.
//
// Only environment references of the form "env.<VAR>" are accepted. Literal
// tokens in the manifest are rejected so the manifest can be committed safely.
package credential

import (
	"fmt"
	"os"
	"strings"

	"modelfarm/internal/failure"
)

const envPrefix = "env."

// LookupFunc reports the value of an environment variable.
type LookupFunc func(key string) (string, bool)

// Token is a resolved bearer token. Its String method never reveals the value.
type Token string

func (t Token) String() string {
	if t == "" {
		return "<empty>"
	}
	return "<redacted>"
}

// Reveal returns the raw token for use in an Authorization header.
func (t Token) Reveal() string { return string(t) }

// Resolve resolves ref using lookup. A nil lookup reads the process
// environment.
func Resolve(ref string, lookup LookupFunc) (Token, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", failure.Wrap(failure.ErrCredential, "credential", "resolve", "hf_token_ro is empty; expected env.<VAR>", nil)
	}
	if !strings.HasPrefix(ref, envPrefix) {
		return "", failure.Wrap(failure.ErrCredential, "credential", "resolve",
			fmt.Sprintf("unsupported token reference %s; literal tokens are not accepted, use env.<VAR>", redact(ref)), nil)
	}
	name := strings.TrimPrefix(ref, envPrefix)
	if name == "" {
		return "", failure.Wrap(failure.ErrCredential, "credential", "resolve", "token reference names no variable", nil)
	}
	value, ok := lookup(name)
	if !ok {
		return "", failure.Wrap(failure.ErrCredential, "credential", "resolve", fmt.Sprintf("environment variable %s is not set", name), nil)
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return "", failure.Wrap(failure.ErrCredential, "credential", "resolve", fmt.Sprintf("environment variable %s is empty", name), nil)
	}
	return Token(value), nil
}

func redact(value string) string {
	if len(value) <= 4 {
		return `"****"`
	}
	return fmt.Sprintf("%q", value[:4]+"****")
}
