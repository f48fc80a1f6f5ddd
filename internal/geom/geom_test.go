package geom

import "testing"

func TestBoxIntersects(t *testing.T) {
	base := Box{X: 0, Y: 0, Width: 100, Height: 100}
	cases := []struct {
		name  string
		other Box
		want  bool
	}{
		{"overlapping", Box{X: 50, Y: 50, Width: 100, Height: 100}, true},
		{"contained", Box{X: 10, Y: 10, Width: 20, Height: 20}, true},
		{"touching edge", Box{X: 100, Y: 0, Width: 50, Height: 50}, true},
		{"disjoint right", Box{X: 150, Y: 0, Width: 50, Height: 50}, false},
		{"disjoint below", Box{X: 0, Y: 200, Width: 50, Height: 50}, false},
	}
	for _, tc := range cases {
		if got := base.Intersects(tc.other); got != tc.want {
			t.Fatalf("%s: expected Intersects=%v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestBoxUnion(t *testing.T) {
	a := Box{X: 0, Y: 0, Width: 10, Height: 10}
	b := Box{X: 20, Y: 30, Width: 10, Height: 10}
	got := a.Union(b)
	want := Box{X: 0, Y: 0, Width: 30, Height: 40}
	if got != want {
		t.Fatalf("expected union %+v, got %+v", want, got)
	}
}

func TestBoxUnionSkipsEmpty(t *testing.T) {
	a := Box{X: 5, Y: 5, Width: 10, Height: 10}
	if got := a.Union(Box{}); got != a {
		t.Fatalf("expected union with empty box to return original, got %+v", got)
	}
	if got := (Box{}).Union(a); got != a {
		t.Fatalf("expected empty union to adopt non-empty box, got %+v", got)
	}
}

func TestBoxPad(t *testing.T) {
	b := Box{X: 10, Y: 10, Width: 20, Height: 20}
	padded := b.Pad(5)
	want := Box{X: 5, Y: 5, Width: 30, Height: 30}
	if padded != want {
		t.Fatalf("expected padded box %+v, got %+v", want, padded)
	}
	if got := b.Pad(0); got != b {
		t.Fatalf("expected zero padding to be a no-op, got %+v", got)
	}
}
