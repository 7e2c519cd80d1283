// Package resource pools expensive handles (browser sessions, HTTP clients,
// database connections) so consecutive tasks can reuse them.
//
// A Pool hands out the most recently released idle handle first and creates a
// new one through its Factory when none is idle. With reuse disabled every
// Release tears the handle down immediately.
package resource
