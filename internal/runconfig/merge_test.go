package runconfig

import "testing"

func TestMerge(t *testing.T) {
	tests := []struct {
		name     string
		global   any
		override any
		want     any
	}{
		{
			name:     "override scalar wins",
			global:   map[string]any{"a": 1, "b": 2},
			override: map[string]any{"b": 3},
			want:     map[string]any{"a": 1, "b": 3},
		},
		{
			name:     "nested mappings recurse",
			global:   map[string]any{"methods": map[string]any{"use_chai": true, "use_msa": true}},
			override: map[string]any{"methods": map[string]any{"use_msa": false}},
			want:     map[string]any{"methods": map[string]any{"use_chai": true, "use_msa": false}},
		},
		{
			name:     "sequences replace wholesale",
			global:   map[string]any{"residues": []any{1, 2, 3}},
			override: map[string]any{"residues": []any{9}},
			want:     map[string]any{"residues": []any{9}},
		},
		{
			name:     "empty sequence replaces",
			global:   map[string]any{"residues": []any{1, 2, 3}},
			override: map[string]any{"residues": []any{}},
			want:     map[string]any{"residues": []any{}},
		},
		{
			name:     "empty mapping merged into mapping is a no-op",
			global:   map[string]any{"methods": map[string]any{"use_chai": true}},
			override: map[string]any{"methods": map[string]any{}},
			want:     map[string]any{"methods": map[string]any{"use_chai": true}},
		},
		{
			name:     "mapping replaces scalar",
			global:   map[string]any{"templates": "x.cif"},
			override: map[string]any{"templates": map[string]any{"model_idx": 2}},
			want:     map[string]any{"templates": map[string]any{"model_idx": 2}},
		},
		{
			name:     "explicit null replaces",
			global:   map[string]any{"a": 1},
			override: map[string]any{"a": nil},
			want:     map[string]any{"a": nil},
		},
		{
			name:     "new keys are added",
			global:   map[string]any{"a": 1},
			override: map[string]any{"b": map[string]any{"c": "d"}},
			want:     map[string]any{"a": 1, "b": map[string]any{"c": "d"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merge(MustFromAny(tt.global), MustFromAny(tt.override))
			want := MustFromAny(tt.want)
			if !got.Equal(want) {
				t.Errorf("Merge() = %s, want %s", got.Canonical(), want.Canonical())
			}
		})
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	global := MustFromAny(map[string]any{"methods": map[string]any{"use_msa": true}})
	override := MustFromAny(map[string]any{"methods": map[string]any{"use_msa": false}})
	globalBefore := string(global.Canonical())
	overrideBefore := string(override.Canonical())

	_ = Merge(global, override)

	if string(global.Canonical()) != globalBefore {
		t.Errorf("global mutated: %s", global.Canonical())
	}
	if string(override.Canonical()) != overrideBefore {
		t.Errorf("override mutated: %s", override.Canonical())
	}
}

func TestMerge_Identity(t *testing.T) {
	globals := []Value{
		DefaultGlobal(),
		MustFromAny(map[string]any{"a": []any{1, 2}, "b": map[string]any{"c": nil}}),
		EmptyMapping(),
	}
	for _, g := range globals {
		if got := Merge(g, EmptyMapping()); !got.Equal(g) {
			t.Errorf("Merge(g, {}) = %s, want %s", got.Canonical(), g.Canonical())
		}
		if got := Merge(g, Null()); !got.Equal(g) {
			t.Errorf("Merge(g, null) = %s, want %s", got.Canonical(), g.Canonical())
		}
	}
}

func TestMerge_Idempotent(t *testing.T) {
	g := DefaultGlobal()
	overrides := []Value{
		MustFromAny(map[string]any{"methods": map[string]any{"use_msa": false}}),
		MustFromAny(map[string]any{"directories": map[string]any{"plots": "p"}, "extra": []any{"x"}}),
		MustFromAny(map[string]any{"templates": 7}),
	}
	for _, o := range overrides {
		once := Merge(g, o)
		twice := Merge(once, o)
		if !once.Equal(twice) {
			t.Errorf("merge not idempotent: once=%s twice=%s", once.Canonical(), twice.Canonical())
		}
	}
}

func TestMergeAll(t *testing.T) {
	got := MergeAll(
		MustFromAny(map[string]any{"a": 1, "b": 1, "c": 1}),
		MustFromAny(map[string]any{"b": 2, "c": 2}),
		Null(),
		MustFromAny(map[string]any{"c": 3}),
	)
	want := MustFromAny(map[string]any{"a": 1, "b": 2, "c": 3})
	if !got.Equal(want) {
		t.Errorf("MergeAll() = %s, want %s", got.Canonical(), want.Canonical())
	}
	if !MergeAll().IsNull() {
		t.Error("MergeAll() with no layers should be null")
	}
}
