package runconfig

// Merge deep-merges override onto global and returns the result without
// modifying either input. For every key of override: when both sides hold
// mappings they are merged recursively; otherwise the override value replaces
// the global value wholesale, including empty sequences and explicit nulls.
//
// A null override as a whole means "no override" and yields global.
func Merge(global, override Value) Value {
	if override.IsNull() {
		return global
	}
	return mergeValue(global, override)
}

func mergeValue(base, override Value) Value {
	if base.kind != KindMapping || override.kind != KindMapping {
		return override
	}
	out := make(map[string]Value, len(base.mapping)+len(override.mapping))
	for k, v := range base.mapping {
		out[k] = v
	}
	for k, ov := range override.mapping {
		if bv, ok := out[k]; ok {
			out[k] = mergeValue(bv, ov)
			continue
		}
		out[k] = ov
	}
	return Value{kind: KindMapping, mapping: out}
}

// MergeAll folds Merge over layers from left to right.
func MergeAll(layers ...Value) Value {
	if len(layers) == 0 {
		return Null()
	}
	out := layers[0]
	for _, layer := range layers[1:] {
		out = Merge(out, layer)
	}
	return out
}
