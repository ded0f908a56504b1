package rng

import "testing"

func TestDeterministicForSeed(t *testing.T) {
	a := New(42)
	b := New(42)

	for i := 0; i < 100; i++ {
		if a.Float64() != b.Float64() {
			t.Fatal("same seed should produce identical sequences")
		}
	}
}

func TestFromSeedHexDeterministic(t *testing.T) {
	a := FromSeedHex("deadbeef")
	b := FromSeedHex("deadbeef")
	for i := 0; i < 10; i++ {
		if a.Float64() != b.Float64() {
			t.Fatal("same seed hex should produce identical sequences")
		}
	}

	c := FromSeedHex("deadbeef")
	d := FromSeedHex("00000000")
	diverged := false
	for i := 0; i < 10; i++ {
		if c.Float64() != d.Float64() {
			diverged = true
		}
	}
	if !diverged {
		t.Error("different seeds should diverge")
	}
}

func TestRangeBounds(t *testing.T) {
	src := New(1)
	for i := 0; i < 1000; i++ {
		v := Range(src, 0.7, 1.3)
		if v < 0.7 || v >= 1.3 {
			t.Fatalf("value %f out of [0.7, 1.3)", v)
		}
	}
}

func TestIntRangeBounds(t *testing.T) {
	src := New(2)
	seen := make(map[int]bool)
	for i := 0; i < 1000; i++ {
		v := IntRange(src, 3, 17)
		if v < 3 || v > 17 {
			t.Fatalf("value %d out of [3, 17]", v)
		}
		seen[v] = true
	}
	if !seen[3] || !seen[17] {
		t.Error("inclusive bounds should both be reachable")
	}
}

func TestWeightedDistribution(t *testing.T) {
	src := New(3)
	weights := []float64{0.05, 0.10, 0.20, 0.30, 0.35}
	counts := make([]int, len(weights))

	const n = 100000
	for i := 0; i < n; i++ {
		counts[Weighted(src, weights)]++
	}

	for i, w := range weights {
		got := float64(counts[i]) / n
		if got < w-0.02 || got > w+0.02 {
			t.Errorf("bucket %d: got frequency %.3f, want ~%.2f", i, got, w)
		}
	}
}

func TestWeightedDegenerate(t *testing.T) {
	src := New(4)
	if Weighted(src, []float64{0, 0, 0}) != 0 {
		t.Error("zero total weight should fall back to index 0")
	}
	if Weighted(src, []float64{1}) != 0 {
		t.Error("single bucket should always win")
	}
}

func TestHashHexCommitment(t *testing.T) {
	seed, err := NewSeed()
	if err != nil {
		t.Fatalf("NewSeed: %v", err)
	}
	if len(seed) != 32 {
		t.Fatalf("expected 32 byte seed, got %d", len(seed))
	}

	h1 := HashHex(seed)
	h2 := HashHex(seed)
	if h1 != h2 {
		t.Error("same seed should produce same commitment")
	}
	if len(h1) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(h1))
	}
}
