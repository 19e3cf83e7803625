// Package mongo provides a MongoDB-backed implementation of session.Store.
// Build the low-level client via runtime/session/mongo/clients/mongo and
// pass it to NewStore so multi-replica deployments share durable run
// history instead of each replica's in-process copy.
package mongo
