package settlement

// PayInput carries the tendered amount and method for a settlement.
type PayInput struct {
	AmountPaid float64 `json:"amountPaid" validate:"required,gt=0"`
	Method     string  `json:"paymentMethod" validate:"required"`
}
