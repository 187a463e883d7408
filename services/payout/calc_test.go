package payout

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCalculateSplitsGross(t *testing.T) {
	b := Calculate(25000)
	require.Equal(t, int64(25000), b.GrossMinor)
	require.Equal(t, int64(1250), b.FeeMinor)
	require.Equal(t, int64(23750), b.NetMinor)
}

func TestCalculateFeeRoundsUp(t *testing.T) {
	// 5% of 1 minor unit rounds up to a full unit, leaving nothing net.
	b := Calculate(1)
	require.Equal(t, int64(1), b.FeeMinor)
	require.Equal(t, int64(0), b.NetMinor)

	// 5% of 19 is 0.95, fee must still round up.
	b = Calculate(19)
	require.Equal(t, int64(1), b.FeeMinor)
	require.Equal(t, int64(18), b.NetMinor)
}

func TestCalculateNonPositiveGross(t *testing.T) {
	require.Equal(t, Breakdown{}, Calculate(0))
	require.Equal(t, Breakdown{}, Calculate(-500))
}

func TestCalculateFeeMatchesCeil(t *testing.T) {
	for g := int64(1); g <= 10000; g++ {
		b := Calculate(g)

		wantFee := g * FeeBps / 10000
		if g*FeeBps%10000 != 0 {
			wantFee++
		}

		require.Equal(t, wantFee, b.FeeMinor, "gross=%d", g)
		require.Equal(t, g-wantFee, b.NetMinor, "gross=%d", g)
		require.Equal(t, g, b.FeeMinor+b.NetMinor, "gross=%d", g)
	}
}
