package worker

// ComponentTree is the decoded component registry: component IDs mapped to
// descriptors. Numbers decode as json.Number so they round-trip exactly.
type ComponentTree map[string]any

// Clone returns a deep copy
func (t ComponentTree) Clone() ComponentTree {
	if t == nil {
		return nil
	}
	out := make(ComponentTree, len(t))
	for k, v := range t {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = cloneValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// State is a diagnostic copy of worker state
type State struct {
	Initialized      bool          `json:"initialized"`
	ActiveScriptPath string        `json:"active_script_path,omitempty"`
	LastComponents   ComponentTree `json:"last_components,omitempty"`
}
