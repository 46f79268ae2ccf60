// Package session houses concrete implementations of core.SessionStore.
// The interface lives in core so the facade and transport depend only on the
// contract; the wiring layer decides which implementation to instantiate.
package session
