package env

import "testing"

func TestDomainFromEnvironment(t *testing.T) {
	t.Setenv("OPENSANDBOX_DOMAIN", "")
	if got := DomainFromEnvironment(); got != "" {
		t.Fatalf("expected empty domain, got %q", got)
	}
	t.Setenv("OPENSANDBOX_DOMAIN", "sandbox.example.com:8080")
	if got := DomainFromEnvironment(); got != "sandbox.example.com:8080" {
		t.Fatalf("unexpected domain %q", got)
	}
}

func TestAPIKeyFromEnvironment(t *testing.T) {
	t.Setenv("OPENSANDBOX_API_KEY", "sk-test")
	if got := APIKeyFromEnvironment(); got != "sk-test" {
		t.Fatalf("unexpected api key %q", got)
	}
}

func TestDebugFromEnvironment(t *testing.T) {
	t.Setenv("OPENSANDBOX_DEBUG", "")
	if _, ok := DebugFromEnvironment(); ok {
		t.Fatal("expected unset debug flag")
	}

	cases := map[string]bool{
		"true":  true,
		"YES":   true,
		"y":     true,
		"1":     true,
		"false": false,
		"0":     false,
		"no":    false,
	}
	for value, want := range cases {
		t.Setenv("OPENSANDBOX_DEBUG", value)
		got, ok := DebugFromEnvironment()
		if !ok {
			t.Fatalf("expected %q to register as set", value)
		}
		if got != want {
			t.Fatalf("value %q: expected %v, got %v", value, want, got)
		}
	}
}
