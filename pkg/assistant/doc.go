// Package assistant answers user messages with a single streaming
// assistant. For each message it loads the thread's recent history,
// converts it to model input and relays the agent's events unchanged.
package assistant
