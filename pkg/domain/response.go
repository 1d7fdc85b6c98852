package domain

import "strings"

// RedirectPrefix marks a view name as an external redirect.
const RedirectPrefix = "redirect:"

// ResponseKind tells the driver how to interpret a Response.
type ResponseKind string

const (
	// ResponseView asks the driver to render a view.
	ResponseView ResponseKind = "view"
	// ResponseRedirect asks the driver to send the user elsewhere.
	ResponseRedirect ResponseKind = "external_redirect"
)

// Response is the response selection returned by Start and SignalEvent.
// A nil Response means the execution ended without a final view.
type Response struct {
	Kind    ResponseKind   `json:"kind"`
	FlowID  string         `json:"flow_id"`
	StateID string         `json:"state_id"`
	View    string         `json:"view,omitempty"`
	URL     string         `json:"url,omitempty"`
	Model   map[string]any `json:"model,omitempty"`
	// Final is set when the response was selected by an end state: the
	// session that produced it is gone and no event can follow.
	Final bool `json:"final,omitempty"`
}

// NewResponse builds a response for state, turning a "redirect:" view into
// an external redirect. The view defaults to the state id.
// final marks responses selected by end states.
func NewResponse(flowID string, state *State, model map[string]any, final bool) *Response {
	view := state.View
	if view == "" {
		view = state.ID
	}
	resp := &Response{
		Kind:    ResponseView,
		FlowID:  flowID,
		StateID: state.ID,
		View:    view,
		Model:   model,
		Final:   final,
	}
	if url, ok := strings.CutPrefix(view, RedirectPrefix); ok {
		resp.Kind = ResponseRedirect
		resp.URL = url
		resp.View = ""
	}
	return resp
}

// Paused reports whether the execution waits for another event after this response.
func (r *Response) Paused() bool {
	return r != nil && !r.Final
}
