package tradernet

import (
	"fmt"
	"strconv"
)

// transformPositions transforms SDK AccountSummary positions to []Position
func transformPositions(sdkResult map[string]interface{}) ([]Position, error) {
	result, ok := sdkResult["result"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid SDK result format: missing 'result' field")
	}

	ps, ok := result["ps"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid SDK result format: missing 'ps' field")
	}

	// An account without positions may omit the array entirely
	rawPos, exists := ps["pos"]
	if !exists || rawPos == nil {
		return []Position{}, nil
	}
	posArray, ok := rawPos.([]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid SDK result format: invalid 'pos' array")
	}

	positions := make([]Position, 0, len(posArray))
	for _, posItem := range posArray {
		posMap, ok := posItem.(map[string]interface{})
		if !ok {
			continue
		}

		// q: quantity, mkt_price: current price, bal_price_a: average cost basis
		position := Position{
			Symbol:       getString(posMap, "i"),
			Quantity:     getFloat64(posMap, "q"),
			AvgPrice:     getFloat64(posMap, "bal_price_a"),
			CurrentPrice: getFloat64(posMap, "mkt_price"),
			Currency:     getString(posMap, "curr"),
		}
		position.MarketValue = position.Quantity * position.CurrentPrice

		positions = append(positions, position)
	}

	return positions, nil
}

// transformOrderResult transforms SDK putTradeOrder response to OrderResult
func transformOrderResult(sdkResult map[string]interface{}, symbol, side string, quantity float64) (*OrderResult, error) {
	result := sdkResult
	if nested, ok := sdkResult["result"].(map[string]interface{}); ok {
		result = nested
	}

	orderID := getString(result, "order_id")
	if orderID == "" {
		orderID = getString(result, "id")
	}
	if orderID == "" {
		return nil, fmt.Errorf("order response has no order id")
	}

	return &OrderResult{
		OrderID:  orderID,
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		Price:    getFloat64(result, "price"),
	}, nil
}

// transformCandles transforms SDK GetCandles (getHloc) response to []OHLCV
// Response format: {hloc: {symbol: [[h,l,o,c], ...]}, vl: {symbol: [vol, ...]}, xSeries: {symbol: [ts, ...]}}
func transformCandles(sdkResult map[string]interface{}, symbol string) ([]OHLCV, error) {
	hlocMap, ok := sdkResult["hloc"].(map[string]interface{})
	if !ok {
		return []OHLCV{}, nil
	}

	symbolHloc, ok := hlocMap[symbol].([]interface{})
	if !ok {
		return []OHLCV{}, nil
	}

	vlMap, _ := sdkResult["vl"].(map[string]interface{})
	symbolVol, _ := vlMap[symbol].([]interface{})

	xSeriesMap, _ := sdkResult["xSeries"].(map[string]interface{})
	symbolTimestamps, _ := xSeriesMap[symbol].([]interface{})

	candles := make([]OHLCV, 0, len(symbolHloc))
	for i, hlocItem := range symbolHloc {
		hlocArr, ok := hlocItem.([]interface{})
		if !ok || len(hlocArr) < 4 {
			continue
		}

		candle := OHLCV{
			High:  getFloat64FromValue(hlocArr[0]),
			Low:   getFloat64FromValue(hlocArr[1]),
			Open:  getFloat64FromValue(hlocArr[2]),
			Close: getFloat64FromValue(hlocArr[3]),
		}

		// Drop candles the broker filled with zeros
		if candle.Close <= 0 {
			continue
		}

		if i < len(symbolVol) {
			candle.Volume = int64(getFloat64FromValue(symbolVol[i]))
		}
		if i < len(symbolTimestamps) {
			candle.Timestamp = int64(getFloat64FromValue(symbolTimestamps[i]))
		}

		candles = append(candles, candle)
	}

	return candles, nil
}

// Helper functions

// getString safely extracts a string value from a map
func getString(m map[string]interface{}, key string) string {
	val, exists := m[key]
	if !exists || val == nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fmt.Sprintf("%v", val)
}

// getFloat64 safely extracts a float64 value from a map
func getFloat64(m map[string]interface{}, key string) float64 {
	if val, exists := m[key]; exists {
		return getFloat64FromValue(val)
	}
	return 0.0
}

// getFloat64FromValue safely converts a value to float64
func getFloat64FromValue(val interface{}) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		// Tradernet returns some numeric fields as strings (e.g., "p": "141.4")
		if floatVal, err := strconv.ParseFloat(v, 64); err == nil {
			return floatVal
		}
	}
	return 0.0
}
