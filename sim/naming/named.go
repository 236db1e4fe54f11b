// Package naming defines how harness components are named.
package naming

import (
	"fmt"
	"strings"
	"unicode"
)

// Named describes an object that has a name.
type Named interface {
	// Name returns the name of the object.
	Name() string
}

// NamedBase is a base implementation of Named.
type NamedBase struct {
	name string
}

func (b *NamedBase) Name() string {
	return b.name
}

// MakeNamedBase creates a new NamedBase
func MakeNamedBase(name string) NamedBase {
	NameMustBeValid(name)
	return NamedBase{name: name}
}

// NameMustBeValid panics if the name does not follow the naming convention.
// A name is a dot-separated hierarchy, e.g. "FIFOTB.Scoreboard". Every token
// must be non-empty and start with an upper-case letter.
func NameMustBeValid(name string) {
	if err := ValidateName(name); err != nil {
		panic(err.Error())
	}
}

// ValidateName returns an error if the name does not follow the naming
// convention.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name must not be empty")
	}

	for _, token := range strings.Split(name, ".") {
		if token == "" {
			return fmt.Errorf("name %q has an empty element", name)
		}

		first := []rune(token)[0]
		if !unicode.IsUpper(first) {
			return fmt.Errorf(
				"name %q: element %q must start with an upper-case letter",
				name, token)
		}
	}

	return nil
}

// Child returns the hierarchical name of an element owned by parent.
func Child(parent, elem string) string {
	return parent + "." + elem
}
