package domain

import "time"

// AuditKind labels an audit entry.
type AuditKind string

const (
	AuditActivate   AuditKind = "activate"
	AuditDeactivate AuditKind = "deactivate"
	AuditSearch     AuditKind = "search"
	AuditEvict      AuditKind = "evict"
	AuditDiscover   AuditKind = "discover"
	AuditCall       AuditKind = "call"
)

// AuditEntry is an immutable record of one registry event.
type AuditEntry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Kind       AuditKind `json:"kind"`
	Subjects   []string  `json:"subjects,omitempty"`
	Categories []string  `json:"categories,omitempty"`
	Weight     int       `json:"weight"`
	RequestID  string    `json:"requestId,omitempty"`
	TraceID    string    `json:"traceId,omitempty"`
}

// PatternKind labels a detected usage pattern.
type PatternKind string

const (
	PatternThrashing         PatternKind = "thrashing"
	PatternDiscoveryFriction PatternKind = "discovery_friction"
	PatternUnusedActivation  PatternKind = "unused_activation"
)

// UsagePattern is an advisory finding from the audit log.
type UsagePattern struct {
	Kind    PatternKind `json:"kind"`
	Subject string      `json:"subject"`
	Count   int         `json:"count"`
	Detail  string      `json:"detail"`
}
