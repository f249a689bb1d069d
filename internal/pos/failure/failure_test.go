package failure

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorsMatchByCode(t *testing.T) {
	sentinel := New(KindValidation, "empty_cart", "Cart is empty.")
	wrapped := fmt.Errorf("submit: %w", sentinel)

	require.ErrorIs(t, wrapped, sentinel)
	require.Equal(t, KindValidation, KindOf(wrapped))
	require.Equal(t, "Cart is empty.", UserMessage(wrapped))

	require.ErrorIs(t, Rejection("Insufficient stock"), ErrBackendRejection)
	require.NotErrorIs(t, Rejection("x"), ErrNetwork)
}

func TestRejectionRelaysMessageVerbatim(t *testing.T) {
	err := Rejection("Insufficient stock for Pen")
	require.Equal(t, KindBackendRejection, KindOf(err))
	require.Equal(t, "Insufficient stock for Pen", UserMessage(err))
}

func TestNetworkHidesCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.1:443: connection refused")
	err := Network(cause)
	require.ErrorIs(t, err, ErrNetwork)
	require.ErrorIs(t, err, cause)
	require.Equal(t, GenericNetworkMessage, UserMessage(err))
}

func TestUnclassifiedErrors(t *testing.T) {
	require.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	require.Equal(t, genericUnknownMessage, UserMessage(errors.New("boom")))
	require.Empty(t, UserMessage(nil))
}
