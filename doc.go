/*
Package webflow is a hierarchical flow execution engine for multi-step
conversations: checkouts, wizards, approvals and other processes that pause
between user requests.

# Concept

A flow is an immutable graph of states. View states pause and wait for an
event, action states run application code, decision states branch, subflow
states nest a whole other flow, and end states finish the flow with an
outcome. An execution drives one conversation through a flow; nested flows
form a stack of sessions, each with its own flow scope, while a conversation
scope is shared by all of them.

Failures raised while processing a request are routed to exception handlers
declared on states and flows. A failure nobody handles leaves the execution
exactly as it was before the request.

# Usage

Flows can be built in code with package dsl, or read from documents with the
Loam locator in pkg/adapters/loam. The Engine keeps paused executions in an
ExecutionStore between requests:

	b := dsl.New("signup")
	b.View("form").On("submit", "done")
	b.End("done").Render("welcome")

	flows, err := dsl.Registry(b)
	if err != nil {
		log.Fatal(err)
	}
	engine, err := webflow.New(flows, webflow.WithStore(redis.NewFromClient(client)))
	if err != nil {
		log.Fatal(err)
	}

	res, err := engine.Launch(ctx, "signup", nil)
	// render res.Response, then on the next request:
	res, err = engine.Resume(ctx, res.Key, domain.Outcome("submit"))

# Persistence

Stores live in pkg/adapters (memory, file, redis) and can be wrapped with the
encryption and masking middleware in pkg/persistence/middleware. When several
processes share a store, configure a DistributedLocker such as the redis
Locker so requests for one conversation never interleave.
*/
package webflow
