package models

import (
	"context"
	"errors"
	"strings"
)

type ErrorKind string

const (
	KindInvalidQuery        ErrorKind = "invalid_query"
	KindSupplierTimeout     ErrorKind = "supplier_timeout"
	KindSupplierUnavailable ErrorKind = "supplier_unavailable"
	KindSupplierRejected    ErrorKind = "supplier_rejected"
	KindNoSupplierAvailable ErrorKind = "no_supplier_available"
	KindNormalization       ErrorKind = "normalization_error"
	KindCacheUnavailable    ErrorKind = "cache_unavailable"
	KindOfferNotFound       ErrorKind = "offer_not_found"
	KindInternal            ErrorKind = "internal"
)

// transientKinds lists the kinds a dispatch is allowed to retry.
var transientKinds = map[ErrorKind]bool{
	KindSupplierTimeout:     true,
	KindSupplierUnavailable: true,
}

func (k ErrorKind) Transient() bool {
	return transientKinds[k]
}

// Error is the engine's typed error. Supplier is empty for errors that are
// not attributable to a single supplier.
type Error struct {
	Kind     ErrorKind
	Supplier string
	Message  string
	Err      error

	// Failed is populated on KindNoSupplierAvailable.
	Failed []SupplierFailure
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Supplier != "" {
		b.WriteString(e.Supplier)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NewError(kind ErrorKind, supplier, message string) *Error {
	return &Error{Kind: kind, Supplier: supplier, Message: message}
}

func WrapError(kind ErrorKind, supplier string, err error) *Error {
	return &Error{Kind: kind, Supplier: supplier, Err: err}
}

// SupplierError makes sure err is an *Error naming supplier. A call cut off
// by its own timeout, reported by callCtx, is a supplier timeout whatever the
// client said.
func SupplierError(supplier string, err error, callCtx context.Context) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Supplier != "" {
		return err
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return WrapError(KindSupplierTimeout, supplier, err)
	}
	return WrapError(KindOf(err), supplier, err)
}

// KindOf classifies err. Validation errors map to KindInvalidQuery and a bare
// deadline expiry to KindSupplierTimeout; anything unrecognised is internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var ve ValidationError
	if errors.As(err, &ve) {
		return KindInvalidQuery
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindSupplierTimeout
	}
	return KindInternal
}

func IsTransient(err error) bool {
	return KindOf(err).Transient()
}
