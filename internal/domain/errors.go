package domain

import "errors"

var (
	ErrNotFound     = errors.New("auction not found")
	ErrIdsExhausted = errors.New("auction ids exhausted")

	ErrAuctionNotActive = errors.New("auction is not active")
	ErrAuctionNotEnded  = errors.New("auction has not reached its end")

	ErrInsufficientBalance  = errors.New("insufficient free balance")
	ErrInsufficientReserved = errors.New("insufficient reserved balance")
)
