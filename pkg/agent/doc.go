// Package agent runs a single tool-less assistant turn against a model
// provider and turns the streamed output into thread stream events.
//
// The flow for one turn is:
//
//	input := agent.SimpleToInput(items)
//	result, err := runner.RunStreamed(ctx, a, input, actx)
//	for ev, err := range agent.StreamResponse(actx, result) { ... }
package agent
