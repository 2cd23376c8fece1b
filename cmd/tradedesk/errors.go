package main

import "errors"

var (
	ErrUnknownBackend  = errors.New("unknown store backend")
	ErrUnknownProvider = errors.New("unknown billing provider")
	ErrInvalidConfig   = errors.New("invalid configuration")
)
