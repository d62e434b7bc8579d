package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrCorruptRecord is returned when the persisted token record cannot be decoded
var ErrCorruptRecord = errors.New("corrupt token record")

// TokenRecord is the persisted bearer token and its expiry.
type TokenRecord struct {
	Token string `json:"token"`
	// ExpiresAt is the expiry in epoch milliseconds; zero means no expiry was issued.
	ExpiresAt int64 `json:"expiresAt,omitempty"`
}

// HasExpiry reports whether the record carries an expiry
func (r TokenRecord) HasExpiry() bool {
	return r.ExpiresAt != 0
}

// Expiry returns the expiry as a time. Only meaningful when HasExpiry is true.
func (r TokenRecord) Expiry() time.Time {
	return time.UnixMilli(r.ExpiresAt)
}

// RecordKeys names the keys the token record lives under. Expiry is only read
// for records written in the legacy two-key layout.
type RecordKeys struct {
	Token  string
	Expiry string
}

// SaveRecord writes the record as a single value under keys.Token, so token and
// expiry are always replaced together.
func SaveRecord(s Store, keys RecordKeys, rec TokenRecord) error {
	if rec.Token == "" {
		return fmt.Errorf("refusing to persist empty token")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal token record: %w", err)
	}

	if err := s.Set(keys.Token, string(data)); err != nil {
		return fmt.Errorf("failed to save token record: %w", err)
	}

	// A stale legacy expiry is ignored once a structured record exists, so a
	// failure here does not make the record inconsistent.
	_ = s.Delete(keys.Expiry)

	return nil
}

// LoadRecord reads the token record. It returns ErrNotFound when no token is
// persisted and ErrCorruptRecord when the stored value cannot be decoded.
func LoadRecord(s Store, keys RecordKeys) (TokenRecord, error) {
	raw, err := s.Get(keys.Token)
	if err != nil {
		return TokenRecord{}, err
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return TokenRecord{}, ErrNotFound
	}

	if strings.HasPrefix(raw, "{") {
		var rec TokenRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			return TokenRecord{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
		}
		if rec.Token == "" {
			return TokenRecord{}, ErrNotFound
		}
		return rec, nil
	}

	// Legacy layout: raw token under one key, decimal epoch-ms under another
	rec := TokenRecord{Token: raw}

	expiry, err := s.Get(keys.Expiry)
	switch {
	case errors.Is(err, ErrNotFound):
		return rec, nil
	case err != nil:
		return TokenRecord{}, err
	}

	ms, perr := strconv.ParseFloat(strings.TrimSpace(expiry), 64)
	if perr != nil || ms <= 0 {
		// An unreadable expiry never validates
		rec.ExpiresAt = 1
		return rec, nil
	}
	rec.ExpiresAt = int64(ms)
	return rec, nil
}

// ClearRecord deletes the token record and any legacy expiry value
func ClearRecord(s Store, keys RecordKeys) error {
	return errors.Join(s.Delete(keys.Token), s.Delete(keys.Expiry))
}
