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
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	dgbadger "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianVoice/services/reasoning/datatypes"
)

// confirmationKeyPrefix namespaces confirmation tokens in the store.
const confirmationKeyPrefix = "conf/v1/"

// ConfirmationStore issues and redeems confirmation tokens.
//
// Description:
//
//	A RequiresConfirmation result carries an opaque token; the caller
//	resubmits the same request with that token to approve the step on
//	replay. Tokens are bound to (user, tool, sanitized parameters) via a
//	SHA256 fingerprint, stored in BadgerDB with a native TTL so stale
//	confirmations expire without application-side GC. Redeeming deletes
//	the token, so each confirmation authorizes exactly one call.
//
// Thread Safety: Safe for concurrent use (BadgerDB transactions).
type ConfirmationStore struct {
	db  *dgbadger.DB
	ttl time.Duration
}

// OpenConfirmationStore opens a confirmation store at dir.
//
// Inputs:
//   - dir: Store directory. Empty selects BadgerDB's in-memory mode
//     (used in tests and mock deployments).
//   - ttl: Token lifetime. Zero selects 10 minutes.
//
// Outputs:
//   - *ConfirmationStore: The open store. Callers must Close it.
//   - error: Non-nil if the database cannot be opened.
func OpenConfirmationStore(dir string, ttl time.Duration) (*ConfirmationStore, error) {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	opts := dgbadger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := dgbadger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening confirmation store: %w", err)
	}
	return &ConfirmationStore{db: db, ttl: ttl}, nil
}

// Close releases the underlying database.
func (s *ConfirmationStore) Close() error {
	return s.db.Close()
}

// Issue creates a token bound to the given call.
//
// Outputs:
//   - string: The opaque confirmation token.
//   - error: Non-nil on storage failure.
func (s *ConfirmationStore) Issue(userID string, tool datatypes.ToolType, params map[string]any) (string, error) {
	token := uuid.New().String()
	fp, err := fingerprint(tool, params)
	if err != nil {
		return "", err
	}

	err = s.db.Update(func(txn *dgbadger.Txn) error {
		entry := dgbadger.NewEntry(tokenKey(userID, token), fp).WithTTL(s.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		return "", fmt.Errorf("storing confirmation token: %w", err)
	}
	return token, nil
}

// Redeem consumes a token if it matches the call.
//
// Description:
//
//	Succeeds only when the token exists for the user and its fingerprint
//	matches (tool, params). A successful redeem deletes the token. An
//	unknown or expired token is not an error — it simply does not redeem.
//
// Outputs:
//   - bool: True when the token was valid and consumed.
//   - error: Non-nil only on storage failure.
func (s *ConfirmationStore) Redeem(userID, token string, tool datatypes.ToolType, params map[string]any) (bool, error) {
	if token == "" {
		return false, nil
	}
	fp, err := fingerprint(tool, params)
	if err != nil {
		return false, err
	}

	redeemed := false
	err = s.db.Update(func(txn *dgbadger.Txn) error {
		key := tokenKey(userID, token)
		item, getErr := txn.Get(key)
		if errors.Is(getErr, dgbadger.ErrKeyNotFound) {
			return nil
		}
		if getErr != nil {
			return getErr
		}

		stored, copyErr := item.ValueCopy(nil)
		if copyErr != nil {
			return copyErr
		}
		if !bytes.Equal(stored, fp) {
			return nil
		}

		if delErr := txn.Delete(key); delErr != nil {
			return delErr
		}
		redeemed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("redeeming confirmation token: %w", err)
	}
	return redeemed, nil
}

// tokenKey builds the store key for a user's token.
func tokenKey(userID, token string) []byte {
	return []byte(confirmationKeyPrefix + userID + "/" + token)
}

// fingerprint hashes (tool, params) into a comparable digest. Map keys are
// sorted by encoding/json, so equal parameter maps always hash equally.
func fingerprint(tool datatypes.ToolType, params map[string]any) ([]byte, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encoding parameters for fingerprint: %w", err)
	}
	sum := sha256.Sum256(append([]byte(string(tool)+"\x00"), encoded...))
	return sum[:], nil
}
