package app_test

import (
	"github.com/shopspring/decimal"

	"github.com/tokenuniverse/paper-engine/internal/trade"
)

func tradeReq(mint, side, qty, price string) trade.Request {
	return trade.Request{
		TokenMint: mint,
		Side:      side,
		Qty:       decimal.RequireFromString(qty),
		PriceUSD:  decimal.RequireFromString(price),
	}
}
