// Package fee splits a trade's gross value into platform fee, referrer fee,
// and maker/taker net payout. Pure integer arithmetic, no state.
package fee

// ReferrerSharePct is the referrer's fixed share of the gross platform fee,
// in percent. Not runtime-configurable.
const ReferrerSharePct = 10

// Split is the fee breakdown of one fill. Platform + Referrer + Net always
// reconstructs the trade value exactly.
type Split struct {
	Platform int64 `json:"platform"`
	Referrer int64 `json:"referrer"`
	Net      int64 `json:"net"`
}

// Gross returns the total fee carved out of the trade value
func (s Split) Gross() int64 {
	return s.Platform + s.Referrer
}

// Compute splits tradeValue at feeBps basis points. All divisions floor, so
// rounding dust stays with the protocol. feeBps is assumed to already sit
// under the cap enforced by the admin setter.
func Compute(tradeValue, feeBps int64, hasReferrer bool) Split {
	gross := tradeValue * feeBps / 10000

	var referrer int64
	if hasReferrer {
		referrer = gross * ReferrerSharePct / 100
	}

	return Split{
		Platform: gross - referrer,
		Referrer: referrer,
		Net:      tradeValue - gross,
	}
}
