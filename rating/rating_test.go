package rating

import (
	"math"
	"testing"
)

func TestExpected_EqualRatings(t *testing.T) {
	if got := Expected(1200, 1200); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("Equal ratings should expect 0.5, got %v", got)
	}
}

func TestExpected_Symmetry(t *testing.T) {
	a, b := 1350.0, 1100.0
	if sum := Expected(a, b) + Expected(b, a); math.Abs(sum-1) > 1e-9 {
		t.Errorf("Expected scores should sum to 1, got %v", sum)
	}
	if Expected(a, b) <= 0.5 {
		t.Error("Higher rating should expect more than 0.5")
	}
}

func TestUpdate_EqualRatingsWin(t *testing.T) {
	newA, newB := Default.Update(1200, 1200, OutcomeAWins)
	if newA != 1216 {
		t.Errorf("Winner at equal ratings should gain K/2: expected 1216, got %v", newA)
	}
	if newB != 1184 {
		t.Errorf("Loser at equal ratings should lose K/2: expected 1184, got %v", newB)
	}
}

func TestUpdate_DrawAtEqualRatingsChangesNothing(t *testing.T) {
	newA, newB := Default.Update(1200, 1200, OutcomeDraw)
	if newA != 1200 || newB != 1200 {
		t.Errorf("Draw at equal ratings should not move: got %v, %v", newA, newB)
	}
}

func TestUpdate_ZeroSum(t *testing.T) {
	a, b := 1450.0, 1230.0
	newA, newB := Default.Update(a, b, OutcomeBWins)
	if math.Abs((newA+newB)-(a+b)) > 1e-9 {
		t.Errorf("Unclamped update must be zero-sum: %v + %v vs %v + %v", newA, newB, a, b)
	}
	if newA >= a {
		t.Error("Losing favorite must drop")
	}
	if newB <= b {
		t.Error("Winning underdog must rise")
	}
}

func TestUpdate_SwapSymmetry(t *testing.T) {
	newA, newB := Default.Update(1300, 1100, OutcomeAWins)
	swapB, swapA := Default.Update(1100, 1300, OutcomeBWins)
	if newA != swapA || newB != swapB {
		t.Errorf("Swapping sides should swap results: (%v,%v) vs (%v,%v)", newA, newB, swapA, swapB)
	}
}

func TestUpdate_FloorClamp(t *testing.T) {
	e := NewEngine(32, 0)
	_, newB := e.Update(1200, 10, OutcomeAWins)
	if newB < 0 {
		t.Errorf("Rating must not drop below the floor, got %v", newB)
	}

	floored := NewEngine(32, 100)
	_, newB = floored.Update(1200, 105, OutcomeAWins)
	if newB != 100 {
		t.Errorf("Expected clamp to floor 100, got %v", newB)
	}
}

func TestTier(t *testing.T) {
	cases := []struct {
		rating float64
		tier   string
	}{
		{0, "Beginner"},
		{999, "Beginner"},
		{1000, "Amateur"},
		{1199, "Amateur"},
		{1200, "Pro"},
		{1399, "Pro"},
		{1400, "Elite"},
		{1599, "Elite"},
		{1600, "Legend"},
		{2400, "Legend"},
	}
	for _, c := range cases {
		if got := Tier(c.rating); got != c.tier {
			t.Errorf("Tier(%v): expected %s, got %s", c.rating, c.tier, got)
		}
	}
}
