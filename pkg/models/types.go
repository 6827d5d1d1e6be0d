package models

import "time"

// PriceBar is one daily OHLCV bar keyed by trading date (YYYY-MM-DD)
type PriceBar struct {
	Date   string  `json:"date" db:"date"`
	Open   float64 `json:"open" db:"open"`
	High   float64 `json:"high" db:"high"`
	Low    float64 `json:"low" db:"low"`
	Close  float64 `json:"close" db:"close"`
	Volume float64 `json:"volume" db:"volume"`
}

// FusedPoint is one row of the merged price and sentiment series
type FusedPoint struct {
	Date      string   `json:"date"`
	Close     *float64 `json:"close"`
	Sentiment *float64 `json:"sentiment"`
	Summary   *string  `json:"news_summary,omitempty"`
}

// InstrumentInfo is the header card for a tracked instrument
type InstrumentInfo struct {
	Code          string   `json:"code"`
	Name          string   `json:"name"`
	Open          *float64 `json:"open"`
	High          *float64 `json:"high"`
	Low           *float64 `json:"low"`
	Close         *float64 `json:"close"`
	Change        *float64 `json:"change"`
	ChangePercent *float64 `json:"change_percent"`
}

// Portfolio is an instrument tracked by a user
type Portfolio struct {
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	InstrumentCode string    `json:"stock_code" db:"stock_code"`
}

// CleanupReport counts rows removed by a corpus cleanup
type CleanupReport struct {
	DeletedDuplicates       int `json:"deleted_duplicates"`
	DeletedForeignSummaries int `json:"deleted_foreign_summaries"`
	ResetForReanalysis      int `json:"reset_for_reanalysis"`
}

// ParseDay parses a YYYY-MM-DD trading date as UTC midnight
func ParseDay(value string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// IndicatorValues holds the latest technical indicator readings; a nil value
// means the history is too short for that indicator
type IndicatorValues struct {
	Close    float64  `json:"close"`
	MA5      *float64 `json:"ma5"`
	MA10     *float64 `json:"ma10"`
	MA20     *float64 `json:"ma20"`
	MACDDif  *float64 `json:"macd_dif"`
	MACDDea  *float64 `json:"macd_dea"`
	MACDHist *float64 `json:"macd_hist"`
	RSI      *float64 `json:"rsi"`
	K        *float64 `json:"k"`
	D        *float64 `json:"d"`
	J        *float64 `json:"j"`
}

// IndicatorSignals are the human-readable labels derived from IndicatorValues
type IndicatorSignals struct {
	MATrend    string `json:"ma_trend"`
	MACDSignal string `json:"macd_signal"`
	RSISignal  string `json:"rsi_signal"`
	KDJSignal  string `json:"kdj_signal"`
}
