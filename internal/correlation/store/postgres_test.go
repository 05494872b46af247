package store

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proctor/pkg/platform/sentinel"
)

func TestDecodeDetails(t *testing.T) {
	t.Run("identity fields are lifted and the rest kept", func(t *testing.T) {
		details, ok := decodeDetails([]byte(`{"participant_name":"Alice","alternate_id":42,"message":"left tab","confidence":0.9}`))
		require.True(t, ok)
		assert.Equal(t, "Alice", details.ParticipantName)
		assert.Equal(t, "42", details.AlternateID)
		assert.Equal(t, "left tab", details.Message)
		assert.Equal(t, map[string]any{"confidence": 0.9}, details.Extra)
	})

	t.Run("nested extra is flattened", func(t *testing.T) {
		details, ok := decodeDetails([]byte(`{"extra":{"frames":3}}`))
		require.True(t, ok)
		assert.Equal(t, map[string]any{"frames": float64(3)}, details.Extra)
	})

	t.Run("null and empty payloads", func(t *testing.T) {
		for _, raw := range []string{"", "null", "{}"} {
			details, ok := decodeDetails([]byte(raw))
			require.True(t, ok, raw)
			assert.Empty(t, details.ParticipantName)
			assert.Nil(t, details.Extra)
		}
	})

	t.Run("explicit null identity is blank", func(t *testing.T) {
		details, ok := decodeDetails([]byte(`{"participant_id":null}`))
		require.True(t, ok)
		assert.Empty(t, details.ParticipantID)
	})

	t.Run("non-object payloads are kept raw", func(t *testing.T) {
		tests := []struct {
			raw  string
			want any
		}{
			{`[]`, []any{}},
			{`"phone seen"`, "phone seen"},
			{`42`, float64(42)},
			{`{"participant_name":`, `{"participant_name":`},
		}
		for _, tt := range tests {
			details, ok := decodeDetails([]byte(tt.raw))
			assert.False(t, ok, tt.raw)
			assert.Empty(t, details.ParticipantName, tt.raw)
			assert.Equal(t, map[string]any{"raw": tt.want}, details.Extra, tt.raw)
		}
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"bad connection", driver.ErrBadConn, true},
		{"wrapped bad connection", fmt.Errorf("query: %w", driver.ErrBadConn), true},
		{"connection exception", &pq.Error{Code: "08006"}, true},
		{"admin shutdown", &pq.Error{Code: "57P01"}, true},
		{"undefined table", &pq.Error{Code: "42P01"}, false},
		{"no rows", sql.ErrNoRows, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.Equal(t, tt.unavailable, errors.Is(got, sentinel.ErrUnavailable))
		})
	}
	assert.NoError(t, classify(nil))
}
