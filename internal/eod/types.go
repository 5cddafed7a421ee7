package eod

// tradeLine is one journal line as written by tradelog.Append.
type tradeLine struct {
	Time   string
	Symbol string
	Side   string
	Qty    float64
	Price  float64

	// EntryPrice is set on SELL lines by the exit sweep.
	EntryPrice float64
	OrderID    string
	Reason     string
}

// aggRow accumulates one symbol's fills for the day.
type aggRow struct {
	Symbol      string
	BuyQty      float64
	BuyValue    float64 // sum of qty * price
	SellQty     float64
	SellValue   float64
	RealizedPnL float64 // sells against their entry price, plus unattributed sells matched to today's buys

	// sells journaled without an entry price
	openSellQty   float64
	openSellValue float64
}
