package draw

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordKeyStable(t *testing.T) {
	t.Parallel()

	a := Record{Round: 1152, Tier: TierFirst, Label: "복권나라", Address: "서울 강남구 테헤란로 1"}
	b := Record{Round: 1152, Tier: TierFirst, Label: "복권나라", Address: "서울 강남구 테헤란로 1"}

	require.Equal(t, a.Key(), b.Key())
	require.Len(t, string(a.Key()), 16)
}

func TestRecordKeyIgnoresVolatileFields(t *testing.T) {
	t.Parallel()

	base := Record{Round: 1152, Tier: TierFirst, Label: "복권나라", Address: "서울 강남구 테헤란로 1"}
	relabeled := base
	relabeled.Method = "자동"
	relabeled.Region = "서울"
	relabeled.SubRegion = "강남구"

	require.Equal(t, base.Key(), relabeled.Key(),
		"method and region drift must not split the dedup identity")
}

func TestRecordKeyDistinguishes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Record)
	}{
		{"round", func(r *Record) { r.Round++ }},
		{"tier", func(r *Record) { r.Tier = TierSecond }},
		{"label", func(r *Record) { r.Label = "다른가게" }},
		{"address", func(r *Record) { r.Address = "부산 해운대구 2" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			base := Record{Round: 1152, Tier: TierFirst, Label: "복권나라", Address: "서울 강남구 테헤란로 1"}
			other := base
			tc.mutate(&other)
			require.NotEqual(t, base.Key(), other.Key())
		})
	}
}

func TestUnitID(t *testing.T) {
	t.Parallel()

	require.Equal(t, "round-1152/first", UnitID(1152, TierFirst))
}
