package credential_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"modelfarm/internal/credential"
	"modelfarm/internal/failure"
)

func lookupFrom(values map[string]string) credential.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

func TestResolveEnvReference(t *testing.T) {
	token, err := credential.Resolve("env.HF_TOKEN", lookupFrom(map[string]string{"HF_TOKEN": "hf_abc123"}))
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if token.Reveal() != "hf_abc123" {
		t.Fatalf("unexpected token value")
	}
	if s := fmt.Sprint(token); strings.Contains(s, "abc") {
		t.Fatalf("token formatting leaked value: %s", s)
	}
}

func TestResolveUsesProcessEnvironment(t *testing.T) {
	t.Setenv("MODELFARM_TEST_TOKEN", "secret")
	token, err := credential.Resolve("env.MODELFARM_TEST_TOKEN", nil)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if token.Reveal() != "secret" {
		t.Fatal("unexpected token value")
	}
}

func TestResolveFailures(t *testing.T) {
	lookup := lookupFrom(map[string]string{"EMPTY": "  "})
	cases := []struct {
		name string
		ref  string
	}{
		{"empty ref", ""},
		{"literal", "hf_literalsecretvalue"},
		{"no variable", "env."},
		{"unset", "env.MISSING"},
		{"empty value", "env.EMPTY"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := credential.Resolve(tc.ref, lookup)
			if !errors.Is(err, failure.ErrCredential) {
				t.Fatalf("expected ErrCredential, got %v", err)
			}
			if strings.Contains(err.Error(), "literalsecretvalue") {
				t.Fatalf("error leaked literal token: %v", err)
			}
		})
	}
}
