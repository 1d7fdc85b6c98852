/*
Package dsl provides a fluent builder for flow definitions.

It is the code-first alternative to flow documents: type-checked, convenient
in tests, and able to attach Go actions and criteria directly.

Example usage:

	b := dsl.New("booking")

	b.View("details").
		On("submit", "pay").
		On("cancel", "cancelled")

	b.Subflow("pay", "payment").
		Input(dsl.Map("total")...).
		Output(dsl.Map("receipt")...).
		On("paid", "done").
		On("declined", "details")

	b.End("done").Render("confirmation").Output(dsl.Map("receipt")...)
	b.End("cancelled").Render("redirect:/")

	b.Global().Handle(domain.HandleAny("details"))

	flow, err := b.Build()
*/
package dsl
