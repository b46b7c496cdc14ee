// Package events carries server-confirmed task changes to interested clients.
package events

import (
	"time"

	"taskboard/internal/models"
)

type Type string

const (
	TaskCreated Type = "created"
	TaskUpdated Type = "updated"
	TaskDeleted Type = "deleted"

	// Resync is never published by the server. Subscribers emit it locally
	// after each (re)connect because changes made while offline were missed.
	Resync Type = "resync"
)

// Event describes one successful mutation of the store.
// For TaskDeleted only Task.ID is meaningful.
type Event struct {
	Type Type        `json:"type"`
	Task models.Task `json:"task"`
	At   time.Time   `json:"at"`
}

// Publisher receives every successful mutation.
type Publisher interface {
	Publish(ev Event)
}

// Noop drops events. Used when no change feed is wired.
type Noop struct{}

func (Noop) Publish(Event) {}
