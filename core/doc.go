// Package core provides the foundational domain types, interfaces and error
// codes used by Quorum. It defines the core abstractions for:
//
//   - Participants (personas, external agents and human operators)
//   - Sessions and Breakouts (roundtable containers with ordered turn history)
//   - Turns and Responses (one round of prompt broadcast and collected replies)
//   - AuditEvents (immutable records of every mutating operation)
//   - Collaborator interfaces for the execution gateway, durable storage and
//     the security/audit sink
//
// The package intentionally keeps implementation concerns (turn coordination,
// scoring, persistence, relays) out of scope, exposing small interfaces so
// custom backends can be plugged in. Everything else in the module depends on
// core; core depends on nothing else in the module.
package core
