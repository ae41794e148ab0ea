package orders

import (
	"fmt"

	"github.com/shopspring/decimal"
)

type EffectKind int

const (
	EffectNotify EffectKind = iota + 1
	EffectGenerateInvoice
)

// Effect is work to do after a commit. Effects are never run inside the transaction.
type Effect struct {
	Kind         EffectKind
	UserID       string
	Message      string
	SalesOrderID string
}

func notifyEffect(userID, format string, args ...any) Effect {
	return Effect{Kind: EffectNotify, UserID: userID, Message: fmt.Sprintf(format, args...)}
}

// FormatAmount renders minor units as "1000.00 KZT".
func FormatAmount(cents int64, currency string) string {
	return decimal.New(cents, -2).StringFixed(2) + " " + currency
}
