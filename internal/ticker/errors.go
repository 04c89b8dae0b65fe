package ticker

import "errors"

// ErrNotFound 表示缓存中没有该交易对的有效报价(缺失或已过期)。
var ErrNotFound = errors.New("ticker: 报价不存在")
