// Package router implements the supervisor that classifies a question into
// exactly one specialist route.
//
// Classification is split in two steps so each can be tested on its own:
// the Supervisor asks the model for a roster label, and ParseLabel translates
// that label into the closed Route enum. Labels outside the roster fall back
// to the configured default route instead of failing the request.
package router
