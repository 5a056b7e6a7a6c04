package codec

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simexchange/internal/model"
	"simexchange/pkg/exception"
)

func TestBarPayloadKeepsMissingFields(t *testing.T) {
	bar := model.Bar{
		Symbol:    "AAPL",
		Timestamp: time.Date(2024, 3, 1, 14, 30, 0, 0, time.UTC),
		Close:     decimal.RequireFromString("100.25"),
		Volume:    decimal.NewNullDecimal(decimal.RequireFromString("5000")),
		Count:     42,
	}

	payload, err := EncodeBar(nil, bar)
	require.NoError(t, err)
	assert.Equal(t, BarPayloadVersion, payload[0])

	decoded, err := DecodeBar(payload)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", decoded.Symbol)
	assert.True(t, bar.Timestamp.Equal(decoded.Timestamp))
	assert.True(t, decoded.Close.Equal(bar.Close))
	assert.True(t, decoded.Volume.Valid)
	assert.True(t, decoded.Volume.Decimal.Equal(bar.Volume.Decimal))
	assert.False(t, decoded.VWAP.Valid)
	assert.Equal(t, int64(42), decoded.Count)
}

func TestDecodeBarRejectsUnknownVersion(t *testing.T) {
	_, err := DecodeBar(nil)
	require.ErrorIs(t, err, exception.ErrBarPayloadVersion)
	_, err = DecodeBar([]byte{9, '{', '}'})
	require.ErrorIs(t, err, exception.ErrBarPayloadVersion)
}
