package paymentsvc

import (
	"errors"
	"fmt"

	rentalsvc "equiprental/service/rental"
)

type ErrCode string

const (
	ErrInvalidRequest      ErrCode = "INVALID_REQUEST"
	ErrNotFound            ErrCode = "NOT_FOUND"
	ErrForbidden           ErrCode = "FORBIDDEN"
	ErrInvalidTransition   ErrCode = "INVALID_TRANSITION"
	ErrGatewayDeclined     ErrCode = "GATEWAY_DECLINED"
	ErrGatewayUnreachable  ErrCode = "GATEWAY_UNREACHABLE"
	ErrStoreConflict       ErrCode = "STORE_CONFLICT"
	ErrInsufficientPayment ErrCode = "INSUFFICIENT_PAYMENT"
)

type codedError struct {
	code ErrCode
	err  error
}

func (e codedError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.code, e.err)
	}
	return string(e.code)
}
func (e codedError) Code() ErrCode { return e.code }
func (e codedError) Unwrap() error { return e.err }

func makeErr(c ErrCode) error            { return codedError{code: c} }
func wrapErr(c ErrCode, err error) error { return codedError{code: c, err: err} }
func invalid(format string, a ...any) error {
	return wrapErr(ErrInvalidRequest, fmt.Errorf(format, a...))
}

// Code extracts error code
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// fromRental translates state-machine errors into coordinator codes.
func fromRental(err error) error {
	switch rentalsvc.Code(err) {
	case rentalsvc.ErrNotFound:
		return makeErr(ErrNotFound)
	case rentalsvc.ErrNotOwner:
		return makeErr(ErrForbidden)
	case rentalsvc.ErrInvalidTransition, rentalsvc.ErrInvalidState:
		return wrapErr(ErrInvalidTransition, err)
	}
	return err
}
