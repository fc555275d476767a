// Package voices lists the prebuilt speech voices offered to users.
package voices

import (
	"fmt"
	"sort"
	"strings"
)

// Voice is a prebuilt provider voice with a friendly persona.
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// DefaultID is the voice used when none is chosen.
const DefaultID = "Kore"

var catalogue = []Voice{
	{ID: "Kore", Name: "Clara", Description: "Young female"},
	{ID: "Zephyr", Name: "Mateus", Description: "Calm male"},
	{ID: "Charon", Name: "Sofia", Description: "Professional female"},
	{ID: "Puck", Name: "Lucas", Description: "Dynamic male"},
}

// All returns the catalogue in display order. The slice is a copy.
func All() []Voice {
	out := make([]Voice, len(catalogue))
	copy(out, catalogue)
	return out
}

// Default returns the default voice.
func Default() Voice {
	v, _ := Lookup(DefaultID)
	return v
}

// Lookup finds a voice by ID or persona name, case-insensitively.
func Lookup(key string) (Voice, bool) {
	key = strings.TrimSpace(key)
	for _, v := range catalogue {
		if strings.EqualFold(v.ID, key) || strings.EqualFold(v.Name, key) {
			return v, true
		}
	}
	return Voice{}, false
}

// Resolve maps key to a provider voice ID, falling back to the default for
// an empty key.
func Resolve(key string) (string, error) {
	if strings.TrimSpace(key) == "" {
		return DefaultID, nil
	}
	v, ok := Lookup(key)
	if !ok {
		return "", fmt.Errorf("voices: unknown voice %q (choose one of %s)", key, strings.Join(IDs(), ", "))
	}
	return v.ID, nil
}

// IDs returns the sorted voice IDs.
func IDs() []string {
	ids := make([]string, len(catalogue))
	for i, v := range catalogue {
		ids[i] = v.ID
	}
	sort.Strings(ids)
	return ids
}

func (v Voice) String() string {
	return fmt.Sprintf("%s (%s, %s)", v.Name, v.ID, strings.ToLower(v.Description))
}
