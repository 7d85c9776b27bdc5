// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package safety

import (
	"testing"
	"time"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
)

func openTestStore(t *testing.T) *ConfirmationStore {
	t.Helper()
	store, err := OpenConfirmationStore("", time.Minute)
	if err != nil {
		t.Fatalf("OpenConfirmationStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestConfirmationStore_IssueAndRedeem(t *testing.T) {
	store := openTestStore(t)
	params := map[string]any{"to": "boss@example.com", "subject": "Resign"}

	token, err := store.Issue("u1", datatypes.ToolSendEmail, params)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if token == "" {
		t.Fatal("Issue returned an empty token")
	}

	ok, err := store.Redeem("u1", token, datatypes.ToolSendEmail, params)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if !ok {
		t.Error("a matching token should redeem")
	}
}

func TestConfirmationStore_RedeemIsSingleUse(t *testing.T) {
	store := openTestStore(t)
	params := map[string]any{"to": "x@y.com"}

	token, err := store.Issue("u1", datatypes.ToolSendEmail, params)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	ok, err := store.Redeem("u1", token, datatypes.ToolSendEmail, params)
	if err != nil || !ok {
		t.Fatalf("first redeem = (%v, %v), want (true, nil)", ok, err)
	}

	ok, err = store.Redeem("u1", token, datatypes.ToolSendEmail, params)
	if err != nil {
		t.Fatalf("second redeem: %v", err)
	}
	if ok {
		t.Error("a token must authorize exactly one call")
	}
}

func TestConfirmationStore_MismatchDoesNotRedeem(t *testing.T) {
	store := openTestStore(t)
	params := map[string]any{"to": "x@y.com"}

	token, err := store.Issue("u1", datatypes.ToolSendEmail, params)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	cases := []struct {
		name   string
		user   string
		tool   datatypes.ToolType
		params map[string]any
	}{
		{"different parameters", "u1", datatypes.ToolSendEmail, map[string]any{"to": "attacker@evil.example"}},
		{"different tool", "u1", datatypes.ToolSendMessage, params},
		{"different user", "u2", datatypes.ToolSendEmail, params},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, redeemErr := store.Redeem(tc.user, token, tc.tool, tc.params)
			if redeemErr != nil {
				t.Fatalf("Redeem: %v", redeemErr)
			}
			if ok {
				t.Error("mismatched binding must not redeem")
			}
		})
	}

	// The original binding still redeems after the failed attempts.
	ok, err := store.Redeem("u1", token, datatypes.ToolSendEmail, params)
	if err != nil {
		t.Fatalf("final redeem: %v", err)
	}
	if !ok {
		t.Error("failed attempts must not consume the token")
	}
}

func TestConfirmationStore_EmptyTokenNeverRedeems(t *testing.T) {
	store := openTestStore(t)
	ok, err := store.Redeem("u1", "", datatypes.ToolSendEmail, nil)
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if ok {
		t.Error("an empty token must never redeem")
	}
}

func TestConfirmationStore_UnknownToken(t *testing.T) {
	store := openTestStore(t)
	ok, err := store.Redeem("u1", "not-a-real-token", datatypes.ToolSendEmail, map[string]any{})
	if err != nil {
		t.Fatalf("Redeem: %v", err)
	}
	if ok {
		t.Error("an unknown token must not redeem")
	}
}
