package models

// Side сигнала: "buy" / "sell" / "neutral".
type Side string

const (
	SideNeutral Side = "neutral"
	SideBuy     Side = "buy"
	SideSell    Side = "sell"
)

// Snapshot — значения индикаторов по одной закрытой свече плюс
// разобранные по индикаторам сигналы и итоговое решение.
type Snapshot struct {
	Symbol    string
	Timeframe string
	Candle    Candle

	RSI        float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
	EMAShort   float64
	EMALong    float64
	BBUpper    float64
	BBMiddle   float64
	BBLower    float64

	RSISide  Side
	MACDSide Side
	BBSide   Side
	Combined Side

	// сумма баллов: >= +2 покупка, <= -2 продажа
	Strength float64
	Reasons  []string
}

// Parameters — параметры расчёта, уходят в БД рядом со снапшотом.
type Parameters struct {
	RSIPeriod     int     `json:"rsi_period"`
	RSIOversold   float64 `json:"rsi_oversold"`
	RSIOverbought float64 `json:"rsi_overbought"`
	MACDFast      int     `json:"macd_fast"`
	MACDSlow      int     `json:"macd_slow"`
	MACDSignal    int     `json:"macd_signal"`
	BBPeriod      int     `json:"bb_period"`
	BBStdDev      float64 `json:"bb_stddev"`
	EMAShort      int     `json:"ema_short_period"`
	EMALong       int     `json:"ema_long_period"`
}
