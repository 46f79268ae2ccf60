// Package testutil contains helpers shared by tests: a fluent builder for
// conversation history and a retriever that records every call. They are not
// intended for production usage.
package testutil
