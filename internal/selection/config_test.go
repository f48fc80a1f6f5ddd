package selection

import "testing"

func TestConfigNormalizedViewportPadding(t *testing.T) {
	cases := []struct {
		name  string
		value *float64
		want  float64
	}{
		{name: "nil selects default", value: nil, want: defaultViewportPadding},
		{name: "explicit zero survives", value: padding(0), want: 0},
		{name: "negative clamps to zero", value: padding(-5), want: 0},
		{name: "positive passes through", value: padding(40), want: 40},
	}
	for _, tc := range cases {
		cfg := Config{ViewportPadding: tc.value}.normalized()
		if cfg.ViewportPadding == nil || *cfg.ViewportPadding != tc.want {
			t.Fatalf("%s: expected padding %v, got %v", tc.name, tc.want, cfg.ViewportPadding)
		}
	}
}

func TestConfigNormalizedPresets(t *testing.T) {
	cfg := Config{}.normalized()
	if cfg.Mode != ModeBalanced {
		t.Fatalf("expected balanced preset by default, got %s", cfg.Mode)
	}
	if cfg.MaxVisible != maxVisibleFor(ModeBalanced) {
		t.Fatalf("expected preset max visible, got %d", cfg.MaxVisible)
	}

	low := Config{Mode: ModeLow}.normalized()
	if low.MaxVisible != maxVisibleFor(ModeLow) {
		t.Fatalf("expected low preset max visible, got %d", low.MaxVisible)
	}
}
