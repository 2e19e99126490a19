package fee

import (
	"testing"
)

func TestCompute(t *testing.T) {
	tests := []struct {
		name         string
		tradeValue   int64
		feeBps       int64
		hasReferrer  bool
		wantPlatform int64
		wantReferrer int64
		wantNet      int64
	}{
		{
			name:       "1% fee no referrer",
			tradeValue: 200, feeBps: 100,
			wantPlatform: 2, wantReferrer: 0, wantNet: 198,
		},
		{
			name:       "1% fee with referrer",
			tradeValue: 10000, feeBps: 100, hasReferrer: true,
			// gross fee 100, referrer takes 10%
			wantPlatform: 90, wantReferrer: 10, wantNet: 9900,
		},
		{
			name:       "zero fee rate",
			tradeValue: 5000, feeBps: 0, hasReferrer: true,
			wantPlatform: 0, wantReferrer: 0, wantNet: 5000,
		},
		{
			name:       "fee floors to zero on tiny trade",
			tradeValue: 99, feeBps: 100,
			wantPlatform: 0, wantReferrer: 0, wantNet: 99,
		},
		{
			name:       "referrer share floors to zero",
			tradeValue: 900, feeBps: 100, hasReferrer: true,
			// gross fee 9, 10% of 9 floors to 0
			wantPlatform: 9, wantReferrer: 0, wantNet: 891,
		},
		{
			name:       "max typical rate",
			tradeValue: 1000000, feeBps: 1000, hasReferrer: true,
			wantPlatform: 90000, wantReferrer: 10000, wantNet: 900000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.tradeValue, tt.feeBps, tt.hasReferrer)
			if got.Platform != tt.wantPlatform {
				t.Errorf("Platform = %d, want %d", got.Platform, tt.wantPlatform)
			}
			if got.Referrer != tt.wantReferrer {
				t.Errorf("Referrer = %d, want %d", got.Referrer, tt.wantReferrer)
			}
			if got.Net != tt.wantNet {
				t.Errorf("Net = %d, want %d", got.Net, tt.wantNet)
			}
		})
	}
}

func TestCompute_SplitReconstructsValue(t *testing.T) {
	// Platform + Referrer + Net must equal the trade value exactly,
	// whatever the flooring did.
	values := []int64{1, 7, 99, 100, 101, 999, 12345, 1000000}
	rates := []int64{0, 1, 25, 100, 250, 1000}

	for _, v := range values {
		for _, bps := range rates {
			for _, ref := range []bool{false, true} {
				s := Compute(v, bps, ref)
				if sum := s.Platform + s.Referrer + s.Net; sum != v {
					t.Errorf("Compute(%d, %d, %v): split sums to %d, want %d", v, bps, ref, sum, v)
				}
				if s.Gross() != s.Platform+s.Referrer {
					t.Errorf("Gross() = %d, want %d", s.Gross(), s.Platform+s.Referrer)
				}
			}
		}
	}
}
