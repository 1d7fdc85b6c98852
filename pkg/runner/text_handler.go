package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/aretw0/webflow"
	"github.com/aretw0/webflow/pkg/domain"
)

// TextHandler implements the standard text-based interface.
type TextHandler struct {
	Reader *bufio.Reader
	Writer io.Writer
	// Prompt is printed before each read. Empty disables it.
	Prompt string
}

// NewTextHandler creates a handler for standard text IO.
func NewTextHandler(r io.Reader, w io.Writer) *TextHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &TextHandler{
		Reader: bufio.NewReader(r),
		Writer: w,
		Prompt: "> ",
	}
}

func (h *TextHandler) Output(_ context.Context, res *webflow.Result) error {
	return writeResult(h.Writer, res)
}

func (h *TextHandler) Input(ctx context.Context) (*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if h.Prompt != "" {
		fmt.Fprint(h.Writer, h.Prompt)
	}
	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || text == "") {
		return nil, err
	}
	return ParseEvent(text), nil
}

func (h *TextHandler) SystemOutput(_ context.Context, msg string) error {
	_, err := fmt.Fprintln(h.Writer, msg)
	return err
}

// ParseEvent reads "id key=value ..." as an event. It returns nil for a blank line.
func ParseEvent(line string) *domain.Event {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	attrs := make(map[string]any)
	for _, f := range fields[1:] {
		k, v, _ := strings.Cut(f, "=")
		attrs[k] = v
	}
	return domain.NewEvent(EventSource, fields[0], attrs)
}

// writeResult renders a result as a header line followed by the model, sorted.
func writeResult(w io.Writer, res *webflow.Result) error {
	resp := res.Response
	switch {
	case resp == nil:
		_, err := fmt.Fprintf(w, "[ended] %s\n", outcomeID(res))
		return err
	case resp.Kind == domain.ResponseRedirect:
		_, err := fmt.Fprintf(w, "[%s/%s] redirect: %s\n", resp.FlowID, resp.StateID, resp.URL)
		return err
	}

	if _, err := fmt.Fprintf(w, "[%s/%s] %s\n", resp.FlowID, resp.StateID, resp.View); err != nil {
		return err
	}
	for _, k := range slices.Sorted(maps.Keys(resp.Model)) {
		if _, err := fmt.Fprintf(w, "  %s: %v\n", k, resp.Model[k]); err != nil {
			return err
		}
	}
	if resp.Final {
		_, err := fmt.Fprintf(w, "[ended] %s\n", outcomeID(res))
		return err
	}
	return nil
}

func outcomeID(res *webflow.Result) string {
	if res.Outcome == nil {
		return ""
	}
	return res.Outcome.ID
}
