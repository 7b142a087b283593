package pricefeed

import "errors"

// Sentinel kinds for price feed failures.
var (
	// ErrPriceFetch marks a failed poll. It never reaches Get callers.
	ErrPriceFetch = errors.New("price fetch failed")
	// ErrClosed is returned by Initialize after Close.
	ErrClosed = errors.New("price cache closed")
)
