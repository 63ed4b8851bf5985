package app

import (
	"testing"
	"time"

	"github.com/mx-space/contentgen/internal/config"
)

func TestMatchOriginPattern(t *testing.T) {
	cases := []struct {
		pattern, host string
		want          bool
	}{
		{"example.com", "example.com", true},
		{"*.example.com", "app.example.com", true},
		{"*.example.com", "example.org", false},
		{"localhost:*", "localhost:5173", true},
		{"localhost:*", "otherhost:5173", false},
	}
	for _, tc := range cases {
		if got := matchOriginPattern(tc.pattern, tc.host); got != tc.want {
			t.Errorf("matchOriginPattern(%q, %q) = %v", tc.pattern, tc.host, got)
		}
	}
	if extractOriginHost("https://app.example.com:8443") != "app.example.com:8443" {
		t.Error("extractOriginHost should keep the port")
	}
}

func TestCorsConfigRestrictsOriginsInProduction(t *testing.T) {
	cfg := config.Default()
	cfg.Env = "production"
	cfg.AllowedOrigins = []string{"*.example.com"}
	c := corsConfig(&cfg)
	if !c.AllowOriginFunc("https://app.example.com") || c.AllowOriginFunc("https://evil.test") {
		t.Error("origin filter not applied")
	}

	cfg.Env = "development"
	if !corsConfig(&cfg).AllowOriginFunc("https://evil.test") {
		t.Error("development should allow every origin")
	}
}

func TestParseTimezoneLocation(t *testing.T) {
	loc, err := parseTimezoneLocation("+05:30")
	if err != nil {
		t.Fatal(err)
	}
	if _, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone(); offset != 5*3600+30*60 {
		t.Errorf("offset = %d", offset)
	}
	if _, err := parseTimezoneLocation("Mars/Olympus"); err == nil {
		t.Error("expected an error for an unknown zone")
	}
	if loc, err := parseTimezoneLocation("UTC"); err != nil || loc.String() != "UTC" {
		t.Errorf("UTC = %v, %v", loc, err)
	}
}

func TestHumanizeDuration(t *testing.T) {
	if got := humanizeDuration(90*time.Minute + 30*time.Second); got != "1h0m0s" {
		t.Errorf("humanizeDuration = %q", got)
	}
	if got := humanizeDuration(1500 * time.Millisecond); got != "1s" {
		t.Errorf("humanizeDuration = %q", got)
	}
}
