// Package payments holds the fixed payment-method enumeration shared by the
// settlement service and the day-closure reconciler. Keeping the set in one
// place guarantees every method appears in a closure summary even when it saw
// no sales that day.
package payments

// Method enumerates the accepted payment channels.
type Method string

const (
	MethodCash     Method = "cash"
	MethodCard     Method = "card"
	MethodAirtel   Method = "airtel"
	MethodOrange   Method = "orange"
	MethodAfricell Method = "africell"
	MethodMpesa    Method = "mpesa"
)

// Methods returns the full ordered set of payment methods.
func Methods() []Method {
	return []Method{MethodCash, MethodCard, MethodAirtel, MethodOrange, MethodAfricell, MethodMpesa}
}

// Valid reports whether m is one of the accepted methods.
func Valid(m Method) bool {
	switch m {
	case MethodCash, MethodCard, MethodAirtel, MethodOrange, MethodAfricell, MethodMpesa:
		return true
	default:
		return false
	}
}
