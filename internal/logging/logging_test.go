package logging_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/webflow/internal/logging"
)

func TestAttrs(t *testing.T) {
	assertAttrEqual(t, logging.FlowID("booking"), "flow_id", "booking")
	assertAttrEqual(t, logging.StateID("review"), "state_id", "review")
	assertAttrEqual(t, logging.EventID("submit"), "event_id", "submit")
	assertAttrEqual(t, logging.ExecutionKey("k1"), "execution", "k1")
	assertAttrEqual(t, logging.Status("active"), "status", "active")
	assertAttrEqual(t, logging.Error(nil), "error", "")
	assertAttrEqual(t, logging.Error(errors.New("boom")), "error", "boom")
}

func TestNewWithWriter_RenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelInfo)

	logger.Info("failed", logging.Error(errors.New("boom")))
	logger.Debug("hidden")

	out := buf.String()
	assert.Contains(t, out, "err=boom")
	assert.NotContains(t, out, "hidden")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logging.ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, logging.ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, logging.ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, logging.ParseLevel(""))
}

func assertAttrEqual(t *testing.T, attr slog.Attr, key, value string) {
	t.Helper()
	assert.Equal(t, key, attr.Key)
	assert.Equal(t, value, attr.Value.String())
}
