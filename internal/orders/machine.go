package orders

// State is what Decide needs to know about an order. It is loaded under lock.
type State struct {
	Order      Order
	Product    Product
	SalesOrder *SalesOrder
	Payment    *Payment
	Currency   string
}

type Request struct {
	OrderID    string
	Actor      Actor
	Transition Transition
	// Expected, when set, is the status the caller last saw; a mismatch is reported as StaleError.
	Expected   Status
}

// Decision is the outcome of a valid request: the status change plus what to do after commit.
type Decision struct {
	From         Status
	To           Status
	StockDelta   int
	SalesOrderTo SalesOrderStatus
	Effects      []Effect
}

// Decide validates req against st without touching storage.
func Decide(st State, req Request) (Decision, error) {
	o := st.Order
	if req.Expected != "" && req.Expected != o.Status {
		return Decision{}, &StaleError{OrderID: o.ID, Expected: req.Expected, Actual: o.Status}
	}

	r, ok := validNext[o.Status][req.Transition]
	if !ok {
		return Decision{}, invalidf("cannot %s an order that is %s", req.Transition, o.Status)
	}
	if !allowed(req.Actor, r.parties, o.BuyerID, st.Product.OwnerID) {
		return Decision{}, forbiddenf("%s may not %s order %s", req.Actor, req.Transition, o.ID)
	}

	d := Decision{From: o.Status, To: r.to}
	if err := checkPreconditions(st, req.Transition, &d); err != nil {
		return Decision{}, err
	}
	if releasesStock(d.To) {
		d.StockDelta = o.Quantity
	}
	d.Effects = effectsFor(st, req.Actor, d)
	return d, nil
}

func allowed(a Actor, parties []party, buyerID, sellerID string) bool {
	for _, p := range parties {
		if a.plays(p, buyerID, sellerID) {
			return true
		}
	}
	return false
}

func checkPreconditions(st State, t Transition, d *Decision) error {
	switch t {
	case TransitionMarkPaid:
		if st.SalesOrder == nil || st.Payment == nil || st.Payment.Status != PaymentSucceeded {
			return invalidf("order %s has no succeeded payment", st.Order.ID)
		}
		d.SalesOrderTo = SalesOrderPaid
	case TransitionMarkFailed:
		if st.Payment == nil || (st.Payment.Status != PaymentFailed && st.Payment.Status != PaymentCanceled) {
			return invalidf("order %s has no failed payment", st.Order.ID)
		}
		if st.SalesOrder != nil {
			d.SalesOrderTo = SalesOrderFailed
		}
	case TransitionCancel:
		if st.SalesOrder != nil && st.SalesOrder.Status == SalesOrderPaid {
			return invalidf("order %s is already paid", st.Order.ID)
		}
	}
	return nil
}

func effectsFor(st State, actor Actor, d Decision) []Effect {
	o, p := st.Order, st.Product
	switch d.To {
	case StatusApproved:
		return []Effect{notifyEffect(o.BuyerID, "Your order for %s has been approved.", p.Title)}
	case StatusRejected:
		return []Effect{notifyEffect(o.BuyerID, "Your order for %s has been rejected.", p.Title)}
	case StatusCanceled:
		if actor.UserID == o.BuyerID {
			return []Effect{notifyEffect(p.OwnerID, "Order %s for %s was canceled by the buyer.", o.ID, p.Title)}
		}
		return []Effect{notifyEffect(o.BuyerID, "Your order for %s was canceled by the seller.", p.Title)}
	case StatusPaid:
		amount := FormatAmount(o.TotalCents, st.Currency)
		return []Effect{
			notifyEffect(o.BuyerID, "Payment of %s for order %s received. Your invoice is being prepared.", amount, o.ID),
			notifyEffect(p.OwnerID, "Payment of %s completed for order %s (%s).", amount, o.ID, p.Title),
			{Kind: EffectGenerateInvoice, SalesOrderID: st.SalesOrder.ID},
		}
	case StatusFailed:
		return []Effect{notifyEffect(o.BuyerID, "Payment for order %s (%s) did not go through.", o.ID, p.Title)}
	case StatusShipped:
		return []Effect{notifyEffect(o.BuyerID, "Your order for %s has been shipped.", p.Title)}
	default:
		return nil
	}
}
