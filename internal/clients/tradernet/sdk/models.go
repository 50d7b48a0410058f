package sdk

// GetAllUserTexInfoParams represents parameters for GetAllUserTexInfo command
// This command requires no parameters, but we use a struct for consistency
type GetAllUserTexInfoParams struct{}

// GetPositionJSONParams represents parameters for getPositionJSON command
// This command requires no parameters
type GetPositionJSONParams struct{}

// PutTradeOrderParams represents parameters for putTradeOrder command.
// Field order is part of the signed payload and must not change.
type PutTradeOrderParams struct {
	InstrName    string   `json:"instr_name"`
	ActionID     int      `json:"action_id"`
	OrderTypeID  int      `json:"order_type_id"`
	Qty          float64  `json:"qty"`
	LimitPrice   *float64 `json:"limit_price,omitempty"` // Nil for market orders
	StopPrice    *float64 `json:"stop_price,omitempty"`
	ExpirationID int      `json:"expiration_id"`
	UserOrderID  *int     `json:"user_order_id,omitempty"`
}

// GetHlocParams represents parameters for getHloc command
type GetHlocParams struct {
	ID           string `json:"id"`           // Symbol
	Count        int    `json:"count"`        // -1 for all
	Timeframe    int    `json:"timeframe"`    // Minutes
	DateFrom     string `json:"date_from"`    // Format: "01.01.2020 00:00"
	DateTo       string `json:"date_to"`      // Format: "01.01.2020 00:00"
	IntervalMode string `json:"intervalMode"` // "ClosedRay"
}
