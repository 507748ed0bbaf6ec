package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		KindInvalidRequest:     http.StatusBadRequest,
		KindInvalidCoupon:      http.StatusBadRequest,
		KindProductUnavailable: http.StatusNotFound,
		KindNotFound:           http.StatusNotFound,
		KindInsufficientStock:  http.StatusConflict,
		KindConflict:           http.StatusConflict,
		KindUnauthorized:       http.StatusUnauthorized,
		KindForbidden:          http.StatusForbidden,
		KindInternal:           http.StatusInternalServerError,
	}

	for kind, status := range cases {
		assert.Equal(t, status, kind.Status(), kind.String())
	}
}

func TestKindOfThroughWrapping(t *testing.T) {
	base := NotFound("order")
	wrapped := fmt.Errorf("load order: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindNotFound))
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.False(t, Is(nil, KindInternal))

	ae, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "order not found", ae.Message)
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(KindNotFound, sql.ErrNoRows, "product not found")

	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.Contains(t, err.Error(), "NotFound")
}

func TestWithData(t *testing.T) {
	err := New(KindInsufficientStock, "insufficient stock").WithData(map[string]int{"available": 1})

	assert.Equal(t, map[string]int{"available": 1}, err.Data)
}
