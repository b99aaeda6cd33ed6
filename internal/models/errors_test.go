package models

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSupplierError(t *testing.T) {
	live := context.Background()
	expired, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()

	assert.NoError(t, SupplierError("duffel", nil, live))

	named := NewError(KindSupplierRejected, "duffel", "bad request")
	assert.Same(t, named, SupplierError("duffel", named, expired))

	err := SupplierError("duffel", errors.New("read: connection reset"), expired)
	assert.Equal(t, KindSupplierTimeout, KindOf(err))
	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, "duffel", e.Supplier)

	err = SupplierError("duffel", NewError(KindOfferNotFound, "", "gone"), live)
	assert.Equal(t, KindOfferNotFound, KindOf(err))
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, "duffel", e.Supplier)

	assert.Equal(t, KindInternal, KindOf(SupplierError("duffel", errors.New("boom"), live)))
}
