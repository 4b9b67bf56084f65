package models

import (
	"encoding/json"
	"time"
)

// Action is the mutation type carried by a queue item.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// SyncQueueItem is one pending mutation awaiting delivery to the remote
// backend. Data holds the full entity snapshot taken at enqueue time and is
// immutable afterwards: retries resend the same payload, and a later local
// edit enqueues its own item instead of touching an in-flight one.
type SyncQueueItem struct {
	ID         string
	EntityType EntityKind
	EntityID   string
	Action     Action
	Data       json.RawMessage
	CreatedAt  time.Time
	RetryCount int
}
