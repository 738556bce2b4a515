package version

import (
	"strings"
	"testing"
)

func TestStringReflectsBuildVersion(t *testing.T) {
	cleanup := ForTesting("1.2.3-test")
	t.Cleanup(cleanup)

	if got := String(); got != "1.2.3-test" {
		t.Fatalf("expected version 1.2.3-test, got %s", got)
	}
}

func TestCheckConfigVersion(t *testing.T) {
	tests := []struct {
		name        string
		build       string
		written     string
		wantWarning bool
	}{
		{name: "same version", build: "0.3.0", written: "0.3.0"},
		{name: "patch difference", build: "0.3.2", written: "v0.3.0"},
		{name: "minor difference", build: "0.4.0", written: "0.3.0", wantWarning: true},
		{name: "git describe suffix", build: "0.3.0-5-gabcdef", written: "0.3.1"},
		{name: "dev build", build: "dev", written: "0.3.0"},
		{name: "dev config", build: "0.3.0", written: "dev"},
		{name: "unversioned config", build: "0.3.0", written: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Cleanup(ForTesting(tt.build))
			got := CheckConfigVersion(tt.written)
			if tt.wantWarning && got == "" {
				t.Fatalf("expected warning for build %q config %q", tt.build, tt.written)
			}
			if !tt.wantWarning && got != "" {
				t.Fatalf("unexpected warning: %s", got)
			}
			if tt.wantWarning && !strings.Contains(got, FormatVersion(tt.written)) {
				t.Fatalf("warning should name the config version: %s", got)
			}
		})
	}
}

func TestFormatVersion(t *testing.T) {
	cases := map[string]string{
		"":       "",
		"dev":    "dev",
		"0.3.0":  "v0.3.0",
		"v1.0.0": "v1.0.0",
	}
	for in, want := range cases {
		if got := FormatVersion(in); got != want {
			t.Errorf("FormatVersion(%q) = %q, want %q", in, got, want)
		}
	}
}
