/*
Package loam locates flow definitions stored as documents in a Loam repository.

Each flow is one file: Markdown with YAML frontmatter, JSON or YAML. Action
names are resolved against a registry.Registry, and "${...}" criteria or
targets are compiled as Lua expressions (see package expr).

	---
	id: booking
	states:
	  - id: details
	    view: bookingForm
	    transitions:
	      - on: submit
	        to: check
	  - id: check
	    type: decision
	    transitions:
	      - on: "${flow.total > 100}"
	        to: approval
	      - to: pay
	---
	Free-form description of the flow.
*/
package loam
