// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing core model objects (responses, turns) and
// fake collaborators (gateways, audit sinks). These helpers are
// intentionally minimal and not intended for production usage.
package testutil
