/*
Package domain contains the definition model and the runtime vocabulary of the flow engine.

A Flow is an immutable graph of states built once and shared by every execution that
runs it. This package has no I/O and no dependency on the runtime: executions, stores
and locators depend on it, never the other way around.

# Key Entities

  - Flow / State / Transition: the process graph. State is a tagged variant
    (action, view, subflow, decision, end).
  - Action / Event: opaque behavior and the outcome it reports.
  - Criteria: event id, expression or wildcard matching, tried in that order.
  - Scope: request, flash, flow and conversation attribute containers.
  - ExceptionHandler: maps a failure to a recovery state.
  - Listener / LifecycleHooks: synchronous lifecycle observers.
  - Response: what the driver should render or where it should redirect.
  - Snapshot: the persisted form of a paused execution.
*/
package domain
