package runconfig

import (
	"encoding/json"
	"testing"
	"time"
)

func TestFromAny_Kinds(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Kind
	}{
		{"nil", nil, KindNull},
		{"string", "x", KindScalar},
		{"int", 4, KindScalar},
		{"float", 0.2, KindScalar},
		{"bool", true, KindScalar},
		{"time", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), KindScalar},
		{"sequence", []any{1, "a"}, KindSequence},
		{"mapping", map[string]any{"a": 1}, KindMapping},
		{"yaml mapping", map[any]any{1: "a"}, KindMapping},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := FromAny(tt.in)
			if err != nil {
				t.Fatalf("FromAny() error = %v", err)
			}
			if v.Kind() != tt.want {
				t.Errorf("Kind() = %v, want %v", v.Kind(), tt.want)
			}
		})
	}
}

func TestFromAny_Unsupported(t *testing.T) {
	if _, err := FromAny(struct{}{}); err == nil {
		t.Error("FromAny(struct{}{}) should fail")
	}
	if _, err := FromAny(map[string]any{"a": []any{make(chan int)}}); err == nil {
		t.Error("FromAny with nested channel should fail")
	}
}

func TestValue_Accessors(t *testing.T) {
	v := MustFromAny(map[string]any{
		"directories": map[string]any{"plots": "out/plots"},
		"methods":     map[string]any{"use_msa": false},
		"templates":   map[string]any{"model_idx": 4},
		"visualization": map[string]any{
			"rmsd_vmin": 0.2,
			"rmsd_vmax": 6,
		},
	})

	if got := v.StringAt("", "directories", "plots"); got != "out/plots" {
		t.Errorf("StringAt = %q", got)
	}
	if got := v.StringAt("fallback", "directories", "missing"); got != "fallback" {
		t.Errorf("StringAt missing = %q", got)
	}
	if got := v.BoolAt(true, "methods", "use_msa"); got {
		t.Error("BoolAt use_msa = true, want false")
	}
	if got := v.IntAt(0, "templates", "model_idx"); got != 4 {
		t.Errorf("IntAt = %d, want 4", got)
	}
	if got := v.FloatAt(0, "visualization", "rmsd_vmax"); got != 6 {
		t.Errorf("FloatAt int value = %v, want 6", got)
	}
	if got := v.IntAt(9, "visualization", "rmsd_vmin"); got != 9 {
		t.Errorf("IntAt on fractional float = %d, want default 9", got)
	}
	if s, ok := MustFromAny(0.5).AsString(); !ok || s != "0.5" {
		t.Errorf("AsString(0.5) = %q, %v", s, ok)
	}
}

func TestValue_WithAndWithout(t *testing.T) {
	base := MustFromAny(map[string]any{"a": 1, "b": 2})
	added := base.With("c", String("x"))
	if _, ok := base.Field("c"); ok {
		t.Error("With mutated the receiver")
	}
	if added.Len() != 3 {
		t.Errorf("With Len() = %d, want 3", added.Len())
	}
	removed := added.Without("a", "missing")
	if _, ok := removed.Field("a"); ok {
		t.Error("Without did not remove key")
	}
	if _, ok := added.Field("a"); !ok {
		t.Error("Without mutated the receiver")
	}
}

func TestValue_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"int and whole float", 4, 4.0, true},
		{"different scalars", "a", "b", false},
		{"string vs number", "4", 4, false},
		{"nested equal", map[string]any{"a": []any{1, "x"}}, map[string]any{"a": []any{1, "x"}}, true},
		{"sequence order matters", []any{1, 2}, []any{2, 1}, false},
		{"null vs empty mapping", nil, map[string]any{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MustFromAny(tt.a).Equal(MustFromAny(tt.b)); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValue_CanonicalSortsKeys(t *testing.T) {
	v := MustFromAny(map[string]any{"b": 1, "a": map[string]any{"d": true, "c": nil}})
	want := `{"a":{"c":null,"d":true},"b":1}`
	if got := string(v.Canonical()); got != want {
		t.Errorf("Canonical() = %s, want %s", got, want)
	}
}

func TestValue_JSONRoundTrip(t *testing.T) {
	in := `{"methods":{"use_msa":false},"runs":[1,2.5,"x"]}`
	var v Value
	if err := json.Unmarshal([]byte(in), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := string(v.Canonical()); got != in {
		t.Errorf("Canonical() = %s, want %s", got, in)
	}
}
