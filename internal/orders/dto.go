package orders

// LineInput is one requested item quantity.
type LineInput struct {
	ItemID   int64 `json:"itemId" validate:"required,gt=0"`
	Quantity int   `json:"quantity" validate:"required,gt=0"`
}

// PlaceOrderInput opens an order against a free table.
type PlaceOrderInput struct {
	TableID int64       `json:"tableId" validate:"required,gt=0"`
	Lines   []LineInput `json:"items" validate:"required,min=1,dive"`
}

// AddItemsInput appends items to the open order on a table.
type AddItemsInput struct {
	Lines []LineInput `json:"items" validate:"required,min=1,dive"`
}

// CancelItemsInput removes quantities from an open order.
type CancelItemsInput struct {
	Lines []LineInput `json:"itemsToCancel" validate:"required,min=1,dive"`
}

// BreakItemInput splits one line into two without changing the total owed.
type BreakItemInput struct {
	ItemID   int64 `json:"itemId" validate:"required,gt=0"`
	Quantity int   `json:"quantityToBreak" validate:"required,gt=0"`
}

// DiscountInput applies a percentage discount to an open order.
type DiscountInput struct {
	Percentage int `json:"discountPercentage" validate:"required,gt=0,lte=100"`
}

// SplitBillInput moves line quantities onto a new order on another table.
type SplitBillInput struct {
	NewTableID int64       `json:"newTableId" validate:"required,gt=0"`
	Lines      []LineInput `json:"itemsToSplit" validate:"required,min=1,dive"`
}
