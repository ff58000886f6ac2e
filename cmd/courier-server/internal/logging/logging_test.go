package logging

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestAdapter_LevelsAndComponent(t *testing.T) {
	var buf bytes.Buffer
	a := NewAdapter(New(Config{Level: "info", Output: &buf}), "worker")

	a.Debugf("hidden %d", 1)
	a.Infof("queued %d recipients", 3)
	a.Warnf("skipping %s", "a@example")
	a.Errorf("failed: %v", errors.New("boom"))
	a.Info("done")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 4, "debug is below the configured level")

	tests := []struct {
		level   string
		message string
	}{
		{"info", "queued 3 recipients"},
		{"warn", "skipping a@example"},
		{"error", "failed: boom"},
		{"info", "done"},
	}
	for i, tt := range tests {
		assert.Equal(t, tt.level, entries[i]["level"])
		assert.Equal(t, tt.message, entries[i]["message"])
		assert.Equal(t, "worker", entries[i]["component"])
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	handler := RequestLogger(New(Config{Output: &buf}))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/newsletters", nil))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "POST", entries[0]["method"])
	assert.Equal(t, "/admin/newsletters", entries[0]["path"])
	assert.Equal(t, float64(http.StatusSeeOther), entries[0]["status"])
}
