// Package enums holds the string enums persisted as Postgres enum types.
// Each has a valid-values slice that backs IsValid and its Parse function.
package enums

import (
	"fmt"
	"slices"
)

func parse[T ~string](kind, value string, valid []T) (T, error) {
	if v := T(value); slices.Contains(valid, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, value)
}
