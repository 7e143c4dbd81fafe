package auth

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a request could not be authenticated.
type ErrorKind int

const (
	KindMissing ErrorKind = iota
	KindMalformed
	KindExpired
	KindInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindMalformed:
		return "malformed"
	case KindExpired:
		return "expired"
	default:
		return "invalid"
	}
}

type TokenError struct {
	Kind ErrorKind
	Err  error
}

func (e *TokenError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s token", e.Kind)
	}
	return fmt.Sprintf("%s token: %v", e.Kind, e.Err)
}

func (e *TokenError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a TokenError in err's chain, KindInvalid otherwise.
func KindOf(err error) ErrorKind {
	var te *TokenError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindInvalid
}
