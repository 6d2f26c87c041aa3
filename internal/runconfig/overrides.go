package runconfig

// Overrides holds command-line toggles that are overlaid on every effective
// configuration. Nil fields are not set.
type Overrides struct {
	UseChai   *bool
	UseBoltz  *bool
	UseMSA    *bool
	UseMSADir *bool
	Template  *string
	ModelIdx  *int
	// Directories replaces entries of global.directories by key.
	Directories map[string]string
}

// IsEmpty reports whether no override is set.
func (o Overrides) IsEmpty() bool {
	return o.Value().IsNull()
}

// Value returns the overrides as a mapping shaped like the global section,
// or null when nothing is set.
func (o Overrides) Value() Value {
	out := EmptyMapping()

	methods := EmptyMapping()
	for key, flag := range map[string]*bool{
		"use_chai":    o.UseChai,
		"use_boltz":   o.UseBoltz,
		"use_msa":     o.UseMSA,
		"use_msa_dir": o.UseMSADir,
	} {
		if flag != nil {
			methods = methods.With(key, Bool(*flag))
		}
	}
	if methods.Len() > 0 {
		out = out.With("methods", methods)
	}

	templates := EmptyMapping()
	if o.Template != nil {
		templates = templates.With("default_template", String(*o.Template))
	}
	if o.ModelIdx != nil {
		templates = templates.With("model_idx", Int(int64(*o.ModelIdx)))
	}
	if templates.Len() > 0 {
		out = out.With("templates", templates)
	}

	dirs := EmptyMapping()
	for key, dir := range o.Directories {
		if dir != "" {
			dirs = dirs.With(key, String(dir))
		}
	}
	if dirs.Len() > 0 {
		out = out.With("directories", dirs)
	}

	if out.Len() == 0 {
		return Null()
	}
	return out
}

// Effective returns the configuration for a (prediction, analysis) pair:
// the global section, then the prediction run's parameters, then the
// analysis run's parameters, then overrides. Either run may be nil.
func (d *Document) Effective(pred, analysis *RunDefinition, overrides Value) Value {
	layers := []Value{d.Global}
	if pred != nil {
		layers = append(layers, pred.Parameters)
	}
	if analysis != nil {
		layers = append(layers, analysis.Parameters)
	}
	layers = append(layers, overrides)
	return MergeAll(layers...)
}

// Directory returns a directory from an effective configuration.
func Directory(cfg Value, key string) string {
	return cfg.StringAt(DefaultGlobal().StringAt("", "directories", key), "directories", key)
}
