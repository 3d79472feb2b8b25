package models

import (
	"errors"
	"strings"
	"testing"
)

func TestChatRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     ChatRequest
		wantErr error
	}{
		{"valid", ChatRequest{Message: "hola"}, nil},
		{"empty message", ChatRequest{}, ErrEmptyMessage},
		{"too long", ChatRequest{Message: strings.Repeat("a", MaxChatMessageLength+1)}, ErrMessageTooLong},
		{"at the limit", ChatRequest{Message: strings.Repeat("a", MaxChatMessageLength)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIsValidTarget(t *testing.T) {
	valid := []HandlerTarget{TargetLegal, TargetCollector, TargetLocation, TargetPreferences, TargetEnd}
	for _, target := range valid {
		if !IsValidTarget(target) {
			t.Errorf("IsValidTarget(%s) = false, want true", target)
		}
	}
	for _, target := range []HandlerTarget{TargetSupervisor, "router", "", "end"} {
		if IsValidTarget(target) {
			t.Errorf("IsValidTarget(%s) = true, want false", target)
		}
	}
}

func TestAPIResponseEnvelope(t *testing.T) {
	ok := Success(map[string]string{"k": "v"})
	if ok.Status != "ok" || ok.Result == nil || ok.Message != "" {
		t.Errorf("Success envelope malformed: %+v", ok)
	}

	withMsg := SuccessWithMessage("done", nil)
	if withMsg.Status != "ok" || withMsg.Message != "done" {
		t.Errorf("SuccessWithMessage envelope malformed: %+v", withMsg)
	}

	fail := Error("boom")
	if fail.Status != "error" || fail.Message != "boom" || fail.Result != nil {
		t.Errorf("Error envelope malformed: %+v", fail)
	}
}
