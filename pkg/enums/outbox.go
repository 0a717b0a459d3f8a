package enums

// OutboxAggregateType maps to outbox_events.aggregate_type.
type OutboxAggregateType string

const AggregateOrder OutboxAggregateType = "order"

var aggregateTypes = []OutboxAggregateType{AggregateOrder}

func (a OutboxAggregateType) IsValid() bool { return known(aggregateTypes, a) }

// OutboxEventType maps to outbox_events.event_type and names the redis
// channel suffix the relay publishes on.
type OutboxEventType string

const (
	EventOrderPlaced     OutboxEventType = "order_placed"
	EventOrderRolledBack OutboxEventType = "order_rolled_back"
)

var outboxEventTypes = []OutboxEventType{EventOrderPlaced, EventOrderRolledBack}

func (e OutboxEventType) IsValid() bool { return known(outboxEventTypes, e) }
