package payout

// FeeBps is the platform fee applied to cash beta rewards, in basis points.
const FeeBps int64 = 500

// Breakdown is the fee/net split for a single cash payout, in minor currency
// units. It is computed exactly once when an application is accepted and
// snapshotted onto the payout record; re-deriving it later would let a fee
// schedule change rewrite historical payouts.
type Breakdown struct {
	GrossMinor int64 `json:"grossMinor"`
	FeeMinor   int64 `json:"feeMinor"`
	NetMinor   int64 `json:"netMinor"`
}

// Calculate splits a gross cash reward into platform fee and tester net.
// The fee rounds up in the platform's favor; net never goes below zero.
// Non-positive input yields an all-zero breakdown.
func Calculate(grossMinor int64) Breakdown {
	if grossMinor <= 0 {
		return Breakdown{}
	}

	fee := (grossMinor*FeeBps + 10000 - 1) / 10000
	net := grossMinor - fee
	if net < 0 {
		net = 0
	}

	return Breakdown{
		GrossMinor: grossMinor,
		FeeMinor:   fee,
		NetMinor:   net,
	}
}
