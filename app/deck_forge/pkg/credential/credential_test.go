package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Provider
		secret  string
		wantErr bool
	}{
		{"llm ok", ProviderLLM, "sk-abcdefgh12345", false},
		{"empty", ProviderLLM, "", true},
		{"whitespace", ProviderLLM, "sk-abc defgh123", true},
		{"llm short", ProviderLLM, "abc", true},
		{"gemini ok", ProviderGemini, "AIzaSy" + strings.Repeat("x", 33), false},
		{"gemini wrong length", ProviderGemini, "AIzaSy123", true},
		{"tavily prefix", ProviderTavily, "abcdefghijklmnopqrstuvwxyz", true},
		{"tavily ok", ProviderTavily, "tvly-abcdefghijklmnop", false},
		{"pexels short", ProviderPexels, "short-key", true},
		{"unknown provider only basic rules", Provider("other"), "k", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.p, tt.secret)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("error %v should wrap ErrInvalid", err)
			}
		})
	}
}

func TestCredentialNeverPrintsSecret(t *testing.T) {
	secret := "tvly-supersecretvalue1234"
	c, err := New(ProviderTavily, secret)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	b, _ := json.Marshal(struct{ Key Credential }{c})
	outputs := []string{c.String(), fmt.Sprintf("%v", c), fmt.Sprintf("%#v", c), fmt.Sprintf("%+v", c), string(b)}
	for _, out := range outputs {
		if strings.Contains(out, secret) {
			t.Errorf("output leaks secret: %s", out)
		}
	}
	if c.Reveal() != secret {
		t.Errorf("Reveal() = %q", c.Reveal())
	}
	if got := c.String(); got != "tavily:****1234" {
		t.Errorf("String() = %q", got)
	}
}
