package enums

// OrderStatus tracks the two-phase lifecycle of a placed order:
// reserved first, then pending once confirmed or rolled_back on failure.
type OrderStatus string

const (
	OrderStatusReserved   OrderStatus = "reserved"
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusRolledBack OrderStatus = "rolled_back"
)

var orderStatuses = []OrderStatus{OrderStatusReserved, OrderStatusPending, OrderStatusRolledBack}

func (o OrderStatus) String() string { return string(o) }

func (o OrderStatus) IsValid() bool { return known(orderStatuses, o) }

// IsTerminal reports whether the order left the reserved phase.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusPending || o == OrderStatusRolledBack
}
