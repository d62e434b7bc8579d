package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKeys = RecordKeys{Token: "token", Expiry: "tokenExpiry"}

func TestRecord_RoundTrip(t *testing.T) {
	s := NewMemoryStore()

	rec := TokenRecord{Token: "abc", ExpiresAt: 1_700_000_000_000}
	require.NoError(t, SaveRecord(s, testKeys, rec))

	got, err := LoadRecord(s, testKeys)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
	assert.True(t, got.HasExpiry())
	assert.Equal(t, time.UnixMilli(1_700_000_000_000), got.Expiry())
}

func TestRecord_WithoutExpiry(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, SaveRecord(s, testKeys, TokenRecord{Token: "abc"}))

	got, err := LoadRecord(s, testKeys)
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Token)
	assert.False(t, got.HasExpiry())
}

func TestRecord_SaveReplacesLegacyExpiry(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Set("tokenExpiry", "123"))

	require.NoError(t, SaveRecord(s, testKeys, TokenRecord{Token: "abc"}))

	_, err := s.Get("tokenExpiry")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecord_RejectsEmptyToken(t *testing.T) {
	require.Error(t, SaveRecord(NewMemoryStore(), testKeys, TokenRecord{}))
}

func TestLoadRecord(t *testing.T) {
	tests := []struct {
		name    string
		values  map[string]string
		want    TokenRecord
		wantErr error
	}{
		{
			name:    "nothing persisted",
			values:  map[string]string{},
			wantErr: ErrNotFound,
		},
		{
			name:    "empty token",
			values:  map[string]string{"token": "  "},
			wantErr: ErrNotFound,
		},
		{
			name:    "structured record with empty token",
			values:  map[string]string{"token": `{"token":""}`},
			wantErr: ErrNotFound,
		},
		{
			name:    "corrupt structured record",
			values:  map[string]string{"token": `{"token":`},
			wantErr: ErrCorruptRecord,
		},
		{
			name:   "legacy token only",
			values: map[string]string{"token": "eyJhbGciOi"},
			want:   TokenRecord{Token: "eyJhbGciOi"},
		},
		{
			name:   "legacy token with expiry",
			values: map[string]string{"token": "abc", "tokenExpiry": "1700000000000"},
			want:   TokenRecord{Token: "abc", ExpiresAt: 1_700_000_000_000},
		},
		{
			name:   "legacy unreadable expiry",
			values: map[string]string{"token": "abc", "tokenExpiry": "soon"},
			want:   TokenRecord{Token: "abc", ExpiresAt: 1},
		},
		{
			name:   "structured record ignores legacy expiry",
			values: map[string]string{"token": `{"token":"abc"}`, "tokenExpiry": "1700000000000"},
			want:   TokenRecord{Token: "abc"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewMemoryStore()
			for k, v := range tt.values {
				require.NoError(t, s.Set(k, v))
			}

			got, err := LoadRecord(s, testKeys)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClearRecord(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Set("token", "abc"))
	require.NoError(t, s.Set("tokenExpiry", "123"))

	require.NoError(t, ClearRecord(s, testKeys))
	require.NoError(t, ClearRecord(s, testKeys))

	_, err := s.Get("token")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get("tokenExpiry")
	assert.ErrorIs(t, err, ErrNotFound)
}
