package orders

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusPaid     Status = "paid"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
	StatusShipped  Status = "shipped"
)

func (s Status) String() string { return string(s) }

type SalesOrderStatus string

const (
	SalesOrderPending SalesOrderStatus = "pending"
	SalesOrderPaid    SalesOrderStatus = "paid"
	SalesOrderFailed  SalesOrderStatus = "failed"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCanceled  PaymentStatus = "canceled"
)

// Settled reports whether the gateway has reached a final outcome for the payment.
func (s PaymentStatus) Settled() bool { return s != PaymentPending }

// Transition names a requested state change, not a target status.
type Transition string

const (
	TransitionApprove    Transition = "approve"
	TransitionReject     Transition = "reject"
	TransitionCancel     Transition = "cancel"
	TransitionShip       Transition = "ship"
	TransitionMarkPaid   Transition = "mark_paid"
	TransitionMarkFailed Transition = "mark_failed"
)

// party is the relationship an actor must have with an order to request a transition.
type party int

const (
	partyBuyer party = iota + 1
	partySeller
	partySystem
)

type rule struct {
	to      Status
	parties []party
}

// validNext is the whole lifecycle: current status -> transition -> rule.
// Anything missing is rejected with ErrInvalidTransition.
var validNext = map[Status]map[Transition]rule{
	StatusPending: {
		TransitionApprove: {to: StatusApproved, parties: []party{partySeller}},
		TransitionReject:  {to: StatusRejected, parties: []party{partySeller}},
		TransitionCancel:  {to: StatusCanceled, parties: []party{partyBuyer}},
	},
	StatusApproved: {
		TransitionMarkPaid:   {to: StatusPaid, parties: []party{partySystem}},
		TransitionCancel:     {to: StatusCanceled, parties: []party{partyBuyer, partySeller}},
		TransitionMarkFailed: {to: StatusFailed, parties: []party{partySystem}},
	},
	StatusPaid: {
		TransitionShip:       {to: StatusShipped, parties: []party{partySeller}},
		TransitionMarkFailed: {to: StatusFailed, parties: []party{partySystem}},
	},
	StatusRejected: {},
	StatusFailed:   {},
	StatusCanceled: {},
	StatusShipped:  {},
}

// CanTransition reports whether t is defined from status from, ignoring actor and preconditions.
func CanTransition(from Status, t Transition) bool {
	_, ok := validNext[from][t]
	return ok
}

// Target returns the status t leads to from from.
func Target(from Status, t Transition) (Status, bool) {
	r, ok := validNext[from][t]
	return r.to, ok
}

// releasesStock marks terminal statuses in which the reserved quantity goes back on the shelf.
func releasesStock(s Status) bool {
	switch s {
	case StatusRejected, StatusCanceled, StatusFailed:
		return true
	default:
		return false
	}
}
