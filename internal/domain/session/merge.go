package session

import "slices"

// Merge deep-merges src into a copy of dst. Nested objects merge key by key;
// any other value, arrays included, replaces what was there. Top-level keys
// listed in protected are left untouched.
func Merge(dst, src map[string]any, protected ...string) map[string]any {
	out := make(map[string]any, len(dst)+len(src))
	for k, v := range dst {
		out[k] = v
	}
	for k, v := range src {
		if slices.Contains(protected, k) {
			continue
		}
		incoming, isMap := v.(map[string]any)
		existing, wasMap := out[k].(map[string]any)
		if isMap && wasMap {
			out[k] = Merge(existing, incoming)
			continue
		}
		out[k] = v
	}
	return out
}
