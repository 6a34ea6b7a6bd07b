// Package session provides core.SessionStore implementations: a volatile
// in-memory store with a TTL sweep loop (the default for tests and demos) and
// a redis-backed store for deployments where several replicas must share
// conversational context. Both stores hand out clones, keep turn history
// bounded and garbage-collect sessions after the inactivity window.
package session
