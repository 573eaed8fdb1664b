package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrAccountNotFound, "not_found"},
		{fmt.Errorf("getting refresh token: %w", ErrTokenNotFound), "not_found"},
		{ErrBadCredentials, "invalid_credential"},
		{ErrAccountFrozen, "account_ineligible"},
		{ErrTopTierImmutable, "policy_violation"},
		{ErrUsernameTaken, "conflict"},
		{ErrTokenAlreadyInactive, "already_inactive"},
		{ErrSigningKeyTooShort, "configuration_fault"},
		{InvalidInput("bad"), "invalid_input"},
		{errors.New("database is locked"), "internal"},
	}
	for _, tt := range tests {
		if got := Kind(tt.err); got != tt.want {
			t.Errorf("Kind(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestFailedResult(t *testing.T) {
	res := FailedResult(fmt.Errorf("loading account: %w", ErrAccountNotFound))
	if res.Success {
		t.Error("Success should be false")
	}
	if res.Message != "user not found" {
		t.Errorf("Message = %q, want user not found", res.Message)
	}

	internal := FailedResult(errors.New("no such table: accounts"))
	if internal.Message != internalMessage {
		t.Errorf("internal fault leaked: %q", internal.Message)
	}

	body, err := json.Marshal(internal)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(body) != `{"success":false,"message":"an internal error occurred"}` {
		t.Errorf("envelope = %s", body)
	}
}

func TestNewResult(t *testing.T) {
	res := NewResult([]string{"EMPLOYEE_READ"}, "ok")
	if !res.Success || res.Message != "ok" || len(res.Data) != 1 {
		t.Errorf("NewResult() = %+v", res)
	}
}
