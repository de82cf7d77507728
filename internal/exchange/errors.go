package exchange

import (
	"fmt"

	"github.com/pkg/errors"
)

// codeTimestampRejected — binance -1021: timestamp за пределами
// [serverTime-recvWindow, serverTime+recvWindow].
const codeTimestampRejected = -1021

// ErrClockDrift — повторный -1021 после принудительной пересинхронизации.
// Дальше не ретраим: это уже системный дрейф часов хоста, а не джиттер.
var ErrClockDrift = errors.New("exchange: persistent timestamp rejection after re-sync")

// APIError — ошибка уровня API Binance ({"code":-NNNN,"msg":"..."}).
type APIError struct {
	Code       int
	Msg        string
	HTTPStatus int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance error: code=%d msg=%s http=%d", e.Code, e.Msg, e.HTTPStatus)
}

// IsTimestampRejected — true для -1021.
func IsTimestampRejected(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Code == codeTimestampRejected
}
