package engine

import (
	"net/http"
	"testing"
)

func TestHeaderPolicy_Disabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SecurityHeadersEnabled = false

	if got := HeaderPolicy(cfg); len(got) != 0 {
		t.Errorf("HeaderPolicy() = %v, want empty", got)
	}
}

func TestHeaderPolicy_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SecurityHeadersEnabled = true

	got := HeaderPolicy(cfg)
	want := map[string]string{
		HeaderHSTS:               "max-age=31536000; includeSubDomains",
		HeaderFrameOptions:       "SAMEORIGIN",
		HeaderContentTypeOptions: "nosniff",
		HeaderXSSProtection:      "1; mode=block",
		HeaderReferrerPolicy:     "strict-origin-when-cross-origin",
	}
	if len(got) != len(want) {
		t.Fatalf("HeaderPolicy() has %d headers, want %d", len(got), len(want))
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
}

func TestHeaderPolicy_EmptyValueOmitted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SecurityHeadersEnabled = true
	cfg.SecurityHeaders = []Header{
		{Name: HeaderHSTS, Value: ""},
		{Name: HeaderFrameOptions, Value: "DENY"},
	}

	got := HeaderPolicy(cfg)
	if _, ok := got[HeaderHSTS]; ok {
		t.Error("empty-valued HSTS header should be omitted")
	}
	if got[HeaderFrameOptions] != "DENY" {
		t.Errorf("X-Frame-Options = %q, want %q", got[HeaderFrameOptions], "DENY")
	}
}

func TestApplyHeaders_Overrides(t *testing.T) {
	dst := http.Header{}
	dst.Add("X-Frame-Options", "ALLOWALL")
	dst.Add("X-Frame-Options", "SAMEORIGIN")
	dst.Set("Content-Type", "text/html")

	ApplyHeaders(dst, map[string]string{HeaderFrameOptions: "DENY"})

	vals := dst.Values("X-Frame-Options")
	if len(vals) != 1 || vals[0] != "DENY" {
		t.Errorf("X-Frame-Options = %v, want [DENY]", vals)
	}
	if dst.Get("Content-Type") != "text/html" {
		t.Error("unrelated headers must be left alone")
	}
}
