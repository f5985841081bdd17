package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_NewPair(t *testing.T) {
	t.Parallel()

	p, err := NewPair("btc", "usd")
	require.NoError(t, err)
	require.Equal(t, Pair("BTC/USD"), p)

	_, err = NewPair("BTC", "BTC")
	require.ErrorIs(t, err, ErrUnsupportedPair)

	_, err = NewPair("XYZ", "USD")
	require.ErrorIs(t, err, ErrUnknownCurrency)

	_, err = NewPair("USD", "DOGE")
	require.ErrorIs(t, err, ErrUnknownCurrency)
}

func Test_ValidatePair(t *testing.T) {
	t.Parallel()

	require.True(t, ValidatePair("BTC/USD"))
	require.True(t, ValidatePair("USDT/EUR"))
	require.False(t, ValidatePair("BTC/BTC"))
	require.False(t, ValidatePair("btc/usd"))
	require.False(t, ValidatePair("BTCUSD"))
	require.False(t, ValidatePair("XYZ/USD"))
	require.False(t, ValidatePair(""))
}

func Test_SplitPair(t *testing.T) {
	t.Parallel()

	from, to, ok := SplitPair("BTC/USD")
	require.True(t, ok)
	require.Equal(t, "BTC", from)
	require.Equal(t, "USD", to)

	_, _, ok = SplitPair("BTCUSD")
	require.False(t, ok)
}

func Test_Reverse(t *testing.T) {
	t.Parallel()
	require.Equal(t, Pair("USD/BTC"), Pair("BTC/USD").Reverse())
}
