package exchange

import (
	"errors"

	ccxt "github.com/ccxt/ccxt/go/v4"
)

var (
	// ErrMaintenance 表示交易所处于维护状态，上层应视为行情不可用。
	ErrMaintenance = errors.New("exchange on maintenance")
	// ErrUnsupportedVenue 表示配置的交易所不在支持列表中。
	ErrUnsupportedVenue = errors.New("exchange: 不支持的交易所")
)

// IsRetryable 判断错误是否可重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		return retryableType(ccxtErr)
	}

	return false
}

func retryableType(err *ccxt.Error) bool {
	switch err.Type {
	case ccxt.NetworkErrorErrType,
		ccxt.RequestTimeoutErrType,
		ccxt.ExchangeNotAvailableErrType,
		ccxt.RateLimitExceededErrType,
		ccxt.DDoSProtectionErrType,
		ccxt.BadResponseErrType,
		ccxt.NullResponseErrType:
		return true
	default:
		return false
	}
}
