// Package openai implements provider.Provider against the OpenAI Chat
// Completions API, or any server compatible with it, using the
// github.com/sashabaranov/go-openai client.
package openai
