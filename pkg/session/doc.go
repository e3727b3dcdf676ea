// Package session holds per-thread conversation history in an
// in-memory, time-expiring store. Entries live for a fixed TTL counted
// from the last save; expiry is enforced lazily at load time, with an
// optional sweep for housekeeping. History is process-lifetime only
// and is lost on restart.
package session
