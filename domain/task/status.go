package task

// Status is a task lifecycle phase. The coarse status stored on a task is
// always Open, Accepted, Completed or Cancelled; the fine-grained
// CurrentStatus additionally moves through the in-progress sub-phases
// while the task is accepted.
type Status string

const (
	StatusOpen      Status = "open"
	StatusAccepted  Status = "accepted"
	StatusStarted   Status = "started"
	StatusOnTheWay  Status = "on_the_way"
	StatusDelivered Status = "delivered"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// statusRanks orders statuses monotonically. Clients reconcile pushed
// updates by rank rather than wall-clock time, so the ordering must be
// total: cancelled sits above completed because it, too, is terminal and
// must never be overwritten by a replayed in-progress update.
var statusRanks = map[Status]int{
	StatusOpen:      0,
	StatusAccepted:  1,
	StatusStarted:   2,
	StatusOnTheWay:  3,
	StatusDelivered: 4,
	StatusCompleted: 5,
	StatusCancelled: 6,
}

// transitions is the legal forward graph. Cancellation is handled
// separately in CanTransition since it is reachable from every
// non-terminal state.
var transitions = map[Status]Status{
	StatusOpen:      StatusAccepted,
	StatusAccepted:  StatusStarted,
	StatusStarted:   StatusOnTheWay,
	StatusOnTheWay:  StatusDelivered,
	StatusDelivered: StatusCompleted,
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := statusRanks[s]
	return ok
}

// Terminal reports whether no further transitions are permitted from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Rank returns the monotonic ordering position of s. Unknown statuses
// rank below every valid one so they always lose a merge.
func (s Status) Rank() int {
	rank, ok := statusRanks[s]
	if !ok {
		return -1
	}
	return rank
}

// Coarse collapses the in-progress sub-phases to Accepted. The result is
// what the task's coarse status column holds.
func (s Status) Coarse() Status {
	switch s {
	case StatusStarted, StatusOnTheWay, StatusDelivered:
		return StatusAccepted
	default:
		return s
	}
}

// CanTransition reports whether moving from one status directly to
// another is legal. Phases may not be skipped, and terminal states
// permit nothing.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from.Terminal() {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	return transitions[from] == to
}

// Urgency is the creator-declared priority of a task.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Valid reports whether u is a known urgency value.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// Category classifies what kind of errand a task is.
type Category string

const (
	CategoryGroceries Category = "groceries"
	CategoryFood      Category = "food"
	CategoryCoffee    Category = "coffee"
	CategoryPharmacy  Category = "pharmacy"
	CategoryPrinting  Category = "printing"
	CategoryParcel    Category = "parcel"
	CategoryOther     Category = "other"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryGroceries, CategoryFood, CategoryCoffee, CategoryPharmacy,
		CategoryPrinting, CategoryParcel, CategoryOther:
		return true
	}
	return false
}
