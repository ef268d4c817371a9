package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Op is the kind of row change carried by an Event.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	OpUpsert Op = "UPSERT"
)

const channelPrefix = "erp:changes:"

// Event announces that a row of a tenant table changed.
type Event struct {
	Table          string    `json:"table"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Op             Op        `json:"op"`
	ID             uuid.UUID `json:"id"`
	At             int64     `json:"at"`
}

// Handler receives events for one (table, tenant) channel.
type Handler func(Event)

// Publisher announces row changes.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Feed delivers change events per (table, tenant) channel.
type Feed interface {
	Publisher
	// Subscribe calls handler for every event on the channel until cancel is
	// called or ctx is done.
	Subscribe(ctx context.Context, table string, orgID uuid.UUID, handler Handler) (cancel func(), err error)
}

// Channel returns the channel name for a table scoped to one organization.
func Channel(table string, orgID uuid.UUID) string {
	return channelPrefix + table + ":" + orgID.String()
}

var errInvalidEvent = errors.New("invalid change event")

// ParseEvent decodes a JSON change payload and checks it names a table and tenant.
func ParseEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", errInvalidEvent, err)
	}
	if ev.Table == "" || ev.OrganizationID == uuid.Nil {
		return Event{}, fmt.Errorf("%w: missing table or organization_id", errInvalidEvent)
	}
	return ev, nil
}
