package types

// Candle is one OHLCV bar. Ts is the bar open time in unix milliseconds.
type Candle struct {
	Ts                          int64
	Open, High, Low, Close, Vol float64
}

func Closes(cs []Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}

func Highs(cs []Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.High
	}
	return out
}

func Lows(cs []Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Low
	}
	return out
}

func Volumes(cs []Candle) []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Vol
	}
	return out
}

// Ticker is a top-of-book snapshot with the rolling 24h quote volume.
type Ticker struct {
	Symbol         string  `json:"symbol"`
	Last           float64 `json:"last"`
	Bid            float64 `json:"bid"`
	Ask            float64 `json:"ask"`
	QuoteVolume24h float64 `json:"quote_volume_24h"`
}

// Balance is one currency line of the account.
type Balance struct {
	Free  float64 `json:"free"`
	Total float64 `json:"total"`
}

// OrderResp is a confirmed order. AvgPrice is zero when the venue did not report it.
type OrderResp struct {
	OrderID   string  `json:"order_id"`
	Status    string  `json:"status"`
	Message   string  `json:"message,omitempty"`
	FilledQty float64 `json:"filled_qty"`
	AvgPrice  float64 `json:"avg_price"`
}

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Outcome statuses of one scanned candidate.
const (
	StatusBought  = "bought"
	StatusSkipped = "skipped"
	StatusFailed  = "failed"
)

// Outcome is the result of evaluating one candidate in a buy cycle. Reason carries the filter or
// rejection reason for skipped candidates; Err is set for failed ones.
type Outcome struct {
	Symbol     string  `json:"symbol"`
	Key        string  `json:"key"`
	Status     string  `json:"status"`
	Reason     string  `json:"reason,omitempty"`
	Err        error   `json:"-"`
	Entry      float64 `json:"entry,omitempty"`
	Stop       float64 `json:"stop,omitempty"`
	TakeProfit float64 `json:"take_profit,omitempty"`
	Qty        float64 `json:"qty,omitempty"`
	OrderID    string  `json:"order_id,omitempty"`
}

// ExitResult is the result of checking one held currency in an exit cycle.
type ExitResult struct {
	Key     string  `json:"key"`
	State   string  `json:"state"`
	Price   float64 `json:"price"`
	Entry   float64 `json:"entry"`
	Qty     float64 `json:"qty"`
	OrderID string  `json:"order_id,omitempty"`
	Err     error   `json:"-"`
}

// ExitReport summarizes one exit sweep.
type ExitReport struct {
	Checked   []ExitResult `json:"checked"`
	Untracked []string     `json:"untracked,omitempty"`
	Dust      []string     `json:"dust,omitempty"`
	Stale     []string     `json:"stale,omitempty"`
}

// Exited returns the results that closed a position.
func (r ExitReport) Exited() []ExitResult {
	var out []ExitResult
	for _, c := range r.Checked {
		if c.OrderID != "" && c.Err == nil {
			out = append(out, c)
		}
	}
	return out
}
