package starfield

import (
	"math"
	"math/rand"
	"testing"

	"github.com/guidoenr/backdrop/internal/params"
	"github.com/guidoenr/backdrop/internal/surface"
)

func newTestField(seed int64) *Field {
	return NewField(rand.New(rand.NewSource(seed)))
}

func TestStarCountForDesktopViewport(t *testing.T) {
	for _, vp := range [][2]float64{{1024, 768}, {1280, 800}} {
		want := int(math.Round(math.Sqrt(vp[0]*vp[1]) / 30))
		f := newTestField(1)
		f.Populate(vp[0], vp[1], 1, params.Defaults().Stars)
		n := len(f.Stars())
		if n < want-5 || n > want+5 {
			t.Fatalf("%v: expected about %d stars, got %d", vp, want, n)
		}
		if len(f.Meteors()) != 0 {
			t.Fatalf("%v: meteors present at t=0", vp)
		}
	}
}

func TestStarCountScalesAndClamps(t *testing.T) {
	cases := []struct {
		w, h, dpr, density float64
		want               int
	}{
		{100, 100, 1, 1, 18},
		{10000, 10000, 1, 1, 110},
		{1280, 800, 4, 1, 17},
		{1280, 800, 1, 0, 8},
		{0, 800, 1, 1, 0},
	}
	for _, c := range cases {
		if got := StarCount(c.w, c.h, c.dpr, c.density, 8, 110); got != c.want {
			t.Fatalf("StarCount(%v,%v,%v,%v) = %d, want %d", c.w, c.h, c.dpr, c.density, got, c.want)
		}
	}
}

func TestHiddenStarsYieldEmptyField(t *testing.T) {
	cfg := params.Defaults().Stars
	cfg.ShowStars = false
	f := newTestField(2)
	f.Populate(1280, 800, 1, cfg)
	if len(f.Stars()) != 0 {
		t.Fatalf("expected no stars, got %d", len(f.Stars()))
	}
}

func TestStepKeepsParticlesInBounds(t *testing.T) {
	const w, h = 320.0, 200.0
	f := newTestField(3)
	f.Populate(w, h, 1, params.Defaults().Stars)
	for i := 0; i < 5000; i++ {
		f.Step()
		f.MaybeSpawn()
		if i%50 == 0 {
			f.SpawnMeteor()
		}
		for _, st := range f.Stars() {
			if st.X < 0 || st.X >= w || st.Y < 0 || st.Y >= h {
				t.Fatalf("step %d: star escaped to (%v,%v)", i, st.X, st.Y)
			}
			if st.Alpha < 0.2-1e-9 || st.Alpha > 0.8+1e-9 {
				t.Fatalf("step %d: star alpha %v out of range", i, st.Alpha)
			}
		}
	}
	// meteors are checked after a step since a fresh spawn has not moved yet
	for i := 0; i < 200; i++ {
		f.SpawnMeteor()
		f.Step()
		for _, m := range f.Meteors() {
			if m.Alpha <= 0 {
				t.Fatalf("meteor with alpha %v survived", m.Alpha)
			}
			if m.X < 0 || m.X > w || m.Y > h {
				t.Fatalf("meteor outside viewport at (%v,%v)", m.X, m.Y)
			}
		}
	}
}

func TestMeteorEventuallyExpires(t *testing.T) {
	f := newTestField(4)
	f.Populate(5000, 5000, 1, params.Defaults().Stars)
	if !f.SpawnMeteor() {
		t.Fatalf("spawn refused on empty field")
	}
	steps := int(math.Ceil(1/MeteorFade)) + 1
	for i := 0; i < steps; i++ {
		f.Step()
	}
	if len(f.Meteors()) != 0 {
		t.Fatalf("meteor outlived its fade")
	}
}

func TestMeteorCapHolds(t *testing.T) {
	f := newTestField(5)
	f.Populate(1920, 1080, 1, params.Defaults().Stars)
	if f.MaxMeteors() != 4 {
		t.Fatalf("expected cap 4 on a large viewport, got %d", f.MaxMeteors())
	}
	for i := 0; i < 1000; i++ {
		f.SpawnMeteor()
		if len(f.Meteors()) > 4 {
			t.Fatalf("attempt %d: %d meteors alive", i, len(f.Meteors()))
		}
		if i%7 == 0 {
			f.Step()
		}
	}
}

func TestMeteorCapBySizeClass(t *testing.T) {
	cases := []struct {
		w, h, density float64
		want          int
	}{
		{1920, 1080, 1, 4},
		{375, 812, 1, 2},
		{1920, 1080, 0.1, 1},
		{1920, 1080, 2, 8},
	}
	for _, c := range cases {
		if got := MeteorCap(c.w, c.h, c.density); got != c.want {
			t.Fatalf("MeteorCap(%v,%v,%v) = %d, want %d", c.w, c.h, c.density, got, c.want)
		}
	}
}

func TestMeteorSpawnsInCentralRegion(t *testing.T) {
	f := newTestField(6)
	f.Populate(1000, 1000, 1, params.Defaults().Stars)
	for i := 0; i < 200; i++ {
		f.Reposition(1000, 1000)
		f.SpawnMeteor()
		m := f.Meteors()[0]
		if m.X < 200 || m.X > 800 || m.Y < 200 || m.Y > 800 {
			t.Fatalf("meteor spawned outside the central region: (%v,%v)", m.X, m.Y)
		}
		if m.Angle != math.Pi/4 && m.Angle != 3*math.Pi/4 {
			t.Fatalf("unexpected meteor angle %v", m.Angle)
		}
		if m.Length < 40 || m.Length > 80 || m.Speed < 3.2 || m.Speed > 6.2 {
			t.Fatalf("meteor parameters out of range: %+v", m)
		}
	}
}

func TestDrawLightsUpStars(t *testing.T) {
	f := newTestField(7)
	f.Populate(200, 120, 1, params.Defaults().Stars)
	s := surface.NewBuffer(200, 120)
	if _, err := f.Draw(s, params.White, params.White, DefaultSparkleBudget); err != nil {
		t.Fatalf("draw: %v", err)
	}

	lit := 0
	for _, st := range f.Stars() {
		if s.Alpha(int(st.X), int(st.Y)) > 0 {
			lit++
		}
	}
	if lit != len(f.Stars()) {
		t.Fatalf("expected every star centre to be painted, got %d of %d", lit, len(f.Stars()))
	}
}

func TestWrap(t *testing.T) {
	cases := []struct{ v, size, want float64 }{
		{5, 10, 5},
		{10, 10, 0},
		{10.5, 10, 0.5},
		{-0.5, 10, 9.5},
		{3, 0, 0},
	}
	for _, c := range cases {
		if got := wrap(c.v, c.size); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("wrap(%v,%v) = %v, want %v", c.v, c.size, got, c.want)
		}
	}
}

func TestSparkleBudgetCapsArms(t *testing.T) {
	f := newTestField(3)
	f.Populate(1280, 800, 1, params.Defaults().Stars)
	stars := f.Stars()
	if len(stars) <= DefaultSparkleBudget {
		t.Fatalf("need more than %d stars, got %d", DefaultSparkleBudget, len(stars))
	}
	for i := range stars {
		stars[i].Sparkle = true
		stars[i].ArmLength = 12
		stars[i].ArmWidth = 1.2
	}

	eco := params.Defaults()
	eco.Quality = params.QualityEco
	cases := []struct {
		name   string
		budget int
		want   int
	}{
		{"default", DefaultSparkleBudget, DefaultSparkleBudget},
		{"eco", eco.Effective().Stars.SparkleBudget, 14},
		{"none", 0, 0},
		{"unlimited", len(stars) + 10, len(stars)},
	}
	for _, tc := range cases {
		s := surface.NewBuffer(1280, 800)
		arms, err := f.Draw(s, params.White, params.White, tc.budget)
		if err != nil {
			t.Fatalf("%s: draw: %v", tc.name, err)
		}
		if arms != tc.want {
			t.Fatalf("%s: budget %d drew %d arms, want %d", tc.name, tc.budget, arms, tc.want)
		}
	}
}
