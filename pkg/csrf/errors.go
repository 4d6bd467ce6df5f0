package csrf

import "errors"

var (
	// ErrTokenGeneration indicates the random source failed while minting a token
	ErrTokenGeneration = errors.New("csrf.token_generation_failed")

	// ErrTokenInvalid indicates the presented token is missing, expired, or mismatched
	ErrTokenInvalid = errors.New("csrf.token_invalid")
)
