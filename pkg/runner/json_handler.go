package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aretw0/webflow"
	"github.com/aretw0/webflow/pkg/domain"
)

// JSONEvent is one line of JSON input. A bare JSON string is accepted as
// an event id.
type JSONEvent struct {
	Event      string         `json:"event"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// JSONResult is one line of JSON output.
type JSONResult struct {
	Key      string                 `json:"key"`
	Status   domain.ExecutionStatus `json:"status"`
	Response *domain.Response       `json:"response,omitempty"`
	Outcome  *domain.Event          `json:"outcome,omitempty"`
	Error    string                 `json:"error,omitempty"`
}

// JSONHandler implements the IOHandler interface for structured JSON-Lines communication.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Output(_ context.Context, res *webflow.Result) error {
	return h.Encoder.Encode(JSONResult{
		Key:      res.Key,
		Status:   res.Status,
		Response: res.Response,
		Outcome:  res.Outcome,
	})
}

func (h *JSONHandler) Input(ctx context.Context) (*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || strings.TrimSpace(text) == "") {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	var id string
	if err := json.Unmarshal([]byte(text), &id); err == nil {
		return domain.NewEvent(EventSource, id, nil), nil
	}
	var in JSONEvent
	if err := json.Unmarshal([]byte(text), &in); err != nil {
		return nil, fmt.Errorf("invalid event line: %w", err)
	}
	return domain.NewEvent(EventSource, in.Event, in.Attributes), nil
}

func (h *JSONHandler) SystemOutput(_ context.Context, msg string) error {
	return h.Encoder.Encode(JSONResult{Error: msg})
}
