package plans

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want Plan
	}{
		{in: "free", want: PlanFree},
		{in: "starter", want: PlanStarter},
		{in: "growth", want: PlanGrowth},
		{in: "GROWTH", want: PlanGrowth},
		{in: "invalid", want: PlanFree},
	}

	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Fatalf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRank(t *testing.T) {
	if Rank(PlanFree) >= Rank(PlanStarter) {
		t.Fatalf("expected starter to outrank free")
	}
	if Rank(PlanStarter) >= Rank(PlanGrowth) {
		t.Fatalf("expected growth to outrank starter")
	}
}

func TestLimitsFor(t *testing.T) {
	if LimitsFor(PlanFree).Exports {
		t.Fatalf("free plan must not include exports")
	}
	if LimitsFor(PlanGrowth).Products <= LimitsFor(PlanStarter).Products {
		t.Fatalf("expected growth to allow more products than starter")
	}
}
