package engine

import "testing"

func TestGlobMatch(t *testing.T) {
	tests := []struct {
		pattern string
		s       string
		want    bool
	}{
		{"/api/webhook/*", "/api/webhook/github", true},
		{"/api/webhook/*", "/api/webhook/", true},
		{"/api/webhook/*", "/api/webhook/a/b/c?x=1", true},
		{"/api/webhook/*", "/api/webhook", false},
		{"/api/webhook/*", "/api/users", false},
		{"/health", "/health", true},
		{"/health", "/HEALTH", false},
		{"/health", "/health/", false},
		{"/health", "/healthz", false},
		{"/health", "x/health", false},
		{"*", "", true},
		{"*", "/anything", true},
		{"", "", true},
		{"", "/", false},
		{"/a*b*c", "/abc", true},
		{"/a*b*c", "/axxbyyc", true},
		{"/a*b*c", "/axxbyy", false},
		{"/a*b", "/abab", true},
		{"**", "/x", true},
		{"/*.png", "/img/logo.png", true},
		{"/*.png", "/img/logo.png?v=2", false},
		{"/file?.txt", "/file1.txt", false},
		{"/file?.txt", "/file?.txt", true},
		{"/[ab]", "/a", false},
		{"/[ab]", "/[ab]", true},
		{"/café/*", "/café/menu", true},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"|"+tt.s, func(t *testing.T) {
			if got := globMatch(tt.pattern, tt.s); got != tt.want {
				t.Errorf("globMatch(%q, %q) = %v, want %v", tt.pattern, tt.s, got, tt.want)
			}
		})
	}
}

func TestMatchExemption_FirstMatchWins(t *testing.T) {
	patterns := []string{"/api/*", "/api/webhook/*"}

	got, ok := MatchExemption("/api/webhook/github", patterns)
	if !ok {
		t.Fatal("MatchExemption() ok = false, want true")
	}
	if got != "/api/*" {
		t.Errorf("MatchExemption() = %q, want %q", got, "/api/*")
	}
}

func TestMatchExemption_NoMatch(t *testing.T) {
	got, ok := MatchExemption("/api/users", DefaultExemptionPatterns())
	if ok {
		t.Errorf("MatchExemption() = %q, want no match", got)
	}
}

func TestMatchExemption_EmptyList(t *testing.T) {
	if _, ok := MatchExemption("/health", nil); ok {
		t.Error("MatchExemption() with no patterns should never match")
	}
}

func TestMatchExemption_Defaults(t *testing.T) {
	for _, uri := range []string{
		"/.well-known/acme-challenge/abc",
		"/health",
		"/status",
		"/ping",
		"/api/webhook/stripe",
	} {
		if _, ok := MatchExemption(uri, DefaultExemptionPatterns()); !ok {
			t.Errorf("MatchExemption(%q) = no match, want match", uri)
		}
	}
}

func BenchmarkGlobMatch(b *testing.B) {
	s := "/api/webhook/" + string(make([]byte, 2048))
	for i := 0; i < b.N; i++ {
		globMatch("/*a*a*a*a*z", s)
	}
}
