package util

import (
	"strings"
	"testing"
)

func TestGenerateRandomHex(t *testing.T) {
	hex := GenerateRandomHex(32)
	if len(hex) != 32 {
		t.Errorf("length = %d, want 32", len(hex))
	}
	for _, r := range hex {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Errorf("non-hex character %q", r)
		}
	}
	if GenerateRandomHex(0) != "" || GenerateRandomHex(-5) != "" {
		t.Error("non-positive length should return empty string")
	}
}

func TestGenerateSessionID(t *testing.T) {
	id := GenerateSessionID()
	if !strings.HasPrefix(id, "s_") {
		t.Errorf("session ID %q missing s_ prefix", id)
	}
	if len(id) != 34 {
		t.Errorf("session ID length = %d, want 34", len(id))
	}
	if GenerateSessionID() == id {
		t.Error("two session IDs should not collide")
	}
}

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"off", true, false},
		{"0", true, false},
		{"", true, true},
		{"garbage", false, false},
	}
	for _, tt := range tests {
		t.Setenv("UTIL_TEST_BOOL", tt.value)
		if got := ParseBoolEnv("UTIL_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("UTIL_TEST_STR", "")
	if got := EnvOrDefault("UTIL_TEST_STR", "fallback"); got != "fallback" {
		t.Errorf("EnvOrDefault = %q, want fallback", got)
	}
	t.Setenv("UTIL_TEST_STR", "value")
	if got := EnvOrDefault("UTIL_TEST_STR", "fallback"); got != "value" {
		t.Errorf("EnvOrDefault = %q, want value", got)
	}
}
