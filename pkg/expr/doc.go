// Package expr evaluates "${...}" transition criteria and dynamic targets as
// Lua expressions.
//
// Expressions run in a sandbox without io, os, debug or module loading. They
// read the request through the locals event, model, request, flash, flow and
// conversation:
//
//	${flow.attempts >= 3}
//	${event.id == "submit" and model.total > 100}
package expr
