/*
Package runtime executes flows.

An Execution owns a stack of flow sessions, the conversation and flash scopes and
the listeners attached to it. Start and SignalEvent each process one request
synchronously: states are entered, action chains run, subflows start and end, and
failures are routed to exception handlers before control returns to the caller.
A request that fails without being handled leaves the execution exactly as it was
before the request.

Executions are persisted with Snapshot and rebuilt with FromSnapshot; the rebuilt
execution re-binds its sessions to the current definitions on the next
SignalEvent, or when Restore is called explicitly.
*/
package runtime
