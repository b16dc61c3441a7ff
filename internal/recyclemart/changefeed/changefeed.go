package changefeed

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Tables that emit change events
const (
	TableWasteRecords      = "waste_records"
	TableMarshalDeliveries = "marshal_waste_deliveries"
	TableCenters           = "collation_centers"
)

// Op is the kind of mutation
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
)

// Event describes one committed mutation
type Event struct {
	Table    string    `json:"table"`
	Op       Op        `json:"op"`
	RecordID uuid.UUID `json:"record_id"`
	OwnerID  uuid.UUID `json:"owner_id"`
	CenterID uuid.UUID `json:"center_id"`
	At       time.Time `json:"at"`
}

// Publisher emits change events
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Feed publishes events and delivers them to subscribers until ctx is done
type Feed interface {
	Publisher
	Subscribe(ctx context.Context, onEvent func(Event)) error
	Close() error
}
