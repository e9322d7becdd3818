// Package merge folds chains of partial configuration values into a
// single resolved value.
package merge

import "dario.cat/mergo"

// Chain merges overlays onto base, left to right. Later layers win:
// mapping-typed values (maps, nested structs) merge key by key, anything
// else is replaced wholesale. Zero values never override a defined one,
// so a partial overlay only touches the fields it actually sets.
//
// The result is built up from scratch; base and the overlays are treated
// as read-only layers. T must be a struct or map type.
func Chain[T any](base T, overlays ...T) (T, error) {
	var out T
	if err := mergo.Merge(&out, base, mergo.WithOverride); err != nil {
		return out, err
	}
	for _, overlay := range overlays {
		if err := mergo.Merge(&out, overlay, mergo.WithOverride); err != nil {
			return out, err
		}
	}
	return out, nil
}
