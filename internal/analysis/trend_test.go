package analysis

import (
	"errors"
	"math"
	"testing"
	"time"

	talib "github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewatch/internal/quote"
)

func history(values ...float64) []quote.Observation {
	base := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	out := make([]quote.Observation, len(values))
	for i, v := range values {
		out[i] = quote.NewObservation(decimal.NewFromFloat(v), base.Add(time.Duration(i)*5*time.Minute))
	}
	return out
}

func TestTrendEmptyHistory(t *testing.T) {
	records, err := Trend(nil, 2)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestTrendWindowTwo(t *testing.T) {
	records, err := Trend(history(100, 100, 106), 2)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.False(t, records[0].MovingAverage.Valid)
	assert.True(t, records[1].MovingAverage.Decimal.Equal(decimal.NewFromInt(100)))
	assert.True(t, records[2].MovingAverage.Decimal.Equal(decimal.NewFromInt(103)))
}

func TestTrendDefinedCount(t *testing.T) {
	values := []float64{10, 11, 12, 13, 14, 15, 16}
	for n := 0; n <= len(values); n++ {
		for w := 1; w <= 9; w++ {
			records, err := Trend(history(values[:n]...), w)
			require.NoError(t, err)
			require.Len(t, records, n)

			want := n - w + 1
			if want < 0 {
				want = 0
			}
			assert.Equal(t, want, DefinedCount(records), "n=%d w=%d", n, w)
			for i, r := range records {
				assert.Equal(t, i >= w-1, r.MovingAverage.Valid, "n=%d w=%d i=%d", n, w, i)
			}
		}
	}
}

func TestTrendMatchesDirectMean(t *testing.T) {
	values := []float64{67001.25, 66990.5, 67110.75, 67500, 66000.125, 65999.875, 70000, 70001}
	obs := history(values...)
	for w := 1; w <= len(values); w++ {
		records, err := Trend(obs, w)
		require.NoError(t, err)
		for i := w - 1; i < len(values); i++ {
			// sum in reverse order to check the result does not depend on it
			sum := decimal.Zero
			for j := i; j > i-w; j-- {
				sum = sum.Add(obs[j].Price())
			}
			want := sum.Div(decimal.NewFromInt(int64(w)))
			assert.True(t, records[i].MovingAverage.Decimal.Equal(want), "w=%d i=%d got %s want %s", w, i, records[i].MovingAverage.Decimal, want)
		}
	}
}

func TestTrendAgreesWithTalibSMA(t *testing.T) {
	values := []float64{100, 102, 104, 103, 105, 110, 108, 107.5, 111, 115}
	for _, w := range []int{2, 3, 5} {
		records, err := Trend(history(values...), w)
		require.NoError(t, err)
		sma := talib.Sma(values, w)
		for i := w - 1; i < len(values); i++ {
			got := records[i].MovingAverage.Decimal.InexactFloat64()
			assert.LessOrEqual(t, math.Abs(got-sma[i]), 1e-9, "w=%d i=%d", w, i)
		}
	}
}

func TestTrendLongHistoryStaysExact(t *testing.T) {
	values := make([]float64, 0, 10000)
	for i := 0; i < 10000; i++ {
		values = append(values, 0.1+float64(i%7)*0.01)
	}
	records, err := Trend(history(values...), 2)
	require.NoError(t, err)

	last := records[len(records)-1]
	want := decimal.NewFromFloat(values[len(values)-1]).Add(decimal.NewFromFloat(values[len(values)-2])).Div(decimal.NewFromInt(2))
	assert.True(t, last.MovingAverage.Decimal.Equal(want), "got %s want %s", last.MovingAverage.Decimal, want)
}

func TestTrendRejectsInvalid(t *testing.T) {
	obs := history(1, 2)
	obs = append(obs, quote.ParseObservation("NaN?", time.Now(), quote.TimeFromLocal))

	_, err := Trend(obs, 2)
	var aErr *quote.AnalysisError
	require.True(t, errors.As(err, &aErr), "got %v", err)
	assert.Equal(t, 2, aErr.Index)

	_, err = Trend(history(1), 0)
	require.True(t, errors.As(err, &aErr))
}

func TestTail(t *testing.T) {
	records, err := Trend(history(1, 2, 3, 4, 5, 6), 2)
	require.NoError(t, err)
	tail := Tail(records, 3)
	require.Len(t, tail, 3)
	assert.True(t, tail[0].Price().Equal(decimal.NewFromInt(4)))
	assert.Len(t, Tail(records, 0), 6)
	assert.Len(t, Tail(records, 10), 6)
}

func TestTrendOrdersByArrivalNotTimestamp(t *testing.T) {
	h := history(100, 102, 104)
	h[1].ObservedAt = time.Time{}

	records, err := Trend(h, 2)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.True(t, records[1].MovingAverage.Decimal.Equal(decimal.NewFromInt(101)))
	assert.True(t, records[2].MovingAverage.Decimal.Equal(decimal.NewFromInt(103)))
}
