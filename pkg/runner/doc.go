/*
Package runner drives an Engine from a terminal, a pipe or a script.

The Runner launches a flow, shows every response through an IOHandler and
feeds the events the handler reads back into the engine until the execution
ends or input runs out.

  - TextHandler: interactive prompt; a line reads as an event id followed by
    optional key=value attributes.
  - JSONHandler: JSON Lines in and out, for programs driving the engine.
  - ScriptHandler: replays the events of a YAML script.

Usage:

	r := runner.NewRunner(runner.NewTextHandler(os.Stdin, os.Stdout))
	res, err := r.Run(ctx, engine, "booking", nil)
*/
package runner
