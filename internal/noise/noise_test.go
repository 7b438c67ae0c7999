package noise

import "testing"

func TestBuildIsDeterministic(t *testing.T) {
	a := Build(128, DefaultSeed)
	b := Build(128, DefaultSeed)
	for i := range a.data {
		if a.data[i] != b.data[i] {
			t.Fatalf("cell %d differs between builds: %d vs %d", i, a.data[i], b.data[i])
		}
	}
}

func TestSeedChangesField(t *testing.T) {
	a := Build(64, 1)
	b := Build(64, 2)
	same := 0
	for i := range a.data {
		if a.data[i] == b.data[i] {
			same++
		}
	}
	if same == len(a.data) {
		t.Fatalf("different seeds produced identical fields")
	}
}

func TestSampleWrapsBothAxes(t *testing.T) {
	f := Build(128, DefaultSeed)
	coords := [][2]float64{
		{0.25, 0.75},
		{0.9, 0.1},
		{0.5, 0.5},
	}
	for _, c := range coords {
		base := f.Sample(c[0], c[1])
		for _, shift := range []float64{1, -1, 3, -7} {
			if got := f.Sample(c[0]+shift, c[1]+shift); got != base {
				t.Fatalf("Sample(%v+%v) = %v, want %v", c, shift, got, base)
			}
		}
	}
}

func TestSampleRange(t *testing.T) {
	f := Build(128, DefaultSeed)
	for i := 0; i < 1000; i++ {
		u := float64(i)*0.0137 - 5
		v := float64(i)*0.0071 + 2
		s := f.Sample(u, v)
		if s < 0 || s > 1 {
			t.Fatalf("sample out of range: %v", s)
		}
	}
}

func TestHashRangeAndStability(t *testing.T) {
	if Hash(3, 7, DefaultSeed) != Hash(3, 7, DefaultSeed) {
		t.Fatalf("hash is not stable")
	}
	for x := int32(-50); x < 50; x++ {
		for y := int32(-50); y < 50; y += 7 {
			h := Hash(x, y, DefaultSeed)
			if h < 0 || h > 1 {
				t.Fatalf("hash out of range at (%d,%d): %v", x, y, h)
			}
		}
	}
}

func TestBuildClampsResolution(t *testing.T) {
	f := Build(0, DefaultSeed)
	if f.Size() != 1 {
		t.Fatalf("expected size 1, got %d", f.Size())
	}
	_ = f.Sample(0.3, 0.3)
}
