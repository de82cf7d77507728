package models

import "time"

// BotStatus — heartbeat-запись в bot_status (upsert по instance_id).
type BotStatus struct {
	InstanceID   string
	Host         string
	Status       string // running | error | stopped
	LastBeat     time.Time
	ActiveSince  time.Time
	Version      string
	Environment  string // testnet | mainnet
	ClockOffset  time.Duration
	ErrorMessage string
}

// Trade — строка журнала сделок.
type Trade struct {
	Timestamp time.Time
	Symbol    string
	Side      Side
	Amount    float64
	Price     float64
	Total     float64
	OrderID   string
	Signal    Side
	RSI       float64
	MACDHist  float64
	Notes     string
}
