// Package buildrt is the runtime support imported by generated builders.
// It depends on the standard library only.
package buildrt

import (
	"errors"
	"strings"
)

// ErrUnsetRequired matches every *BuildError via errors.Is.
var ErrUnsetRequired = errors.New("required builder parameter not set")

// BuildError is returned by Build when required parameters were never set.
// No instance is constructed in that case.
type BuildError struct {
	Type    string
	Missing []string
}

func (e *BuildError) Error() string {
	var b strings.Builder
	b.WriteString("piecemeal: cannot build ")
	b.WriteString(e.Type)
	if len(e.Missing) == 1 {
		b.WriteString(": missing required parameter ")
	} else {
		b.WriteString(": missing required parameters ")
	}
	for i, name := range e.Missing {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('\'')
		b.WriteString(name)
		b.WriteByte('\'')
	}
	return b.String()
}

func (e *BuildError) Is(target error) bool {
	return target == ErrUnsetRequired
}

// Unset accumulates the names of required slots that were not set, in the
// order they are checked.
type Unset struct {
	names []string
}

// Check records name when set is false.
func (u *Unset) Check(name string, set bool) {
	if !set {
		u.names = append(u.names, name)
	}
}

// Err returns a *BuildError for typeName when anything was recorded, nil otherwise.
func (u *Unset) Err(typeName string) error {
	if len(u.names) == 0 {
		return nil
	}
	return &BuildError{Type: typeName, Missing: append([]string(nil), u.names...)}
}

// Missing is the check emitted at the top of a generated Build: names[i] is
// unset when set[i] is false. It returns nil when every name is set.
func Missing(typeName string, names []string, set ...bool) error {
	var u Unset
	for i, name := range names {
		u.Check(name, i < len(set) && set[i])
	}
	return u.Err(typeName)
}

// Slot holds one builder parameter and whether it has been assigned.
type Slot[T any] struct {
	value T
	set   bool
}

// Set overwrites the value and marks the slot as set.
func (s *Slot[T]) Set(v T) {
	s.value = v
	s.set = true
}

func (s *Slot[T]) IsSet() bool { return s.set }

// Get returns the value and whether it was set.
func (s *Slot[T]) Get() (T, bool) { return s.value, s.set }

// Value returns the stored value, the zero value when unset.
func (s *Slot[T]) Value() T { return s.value }

// Or returns the stored value when set, otherwise the result of def.
// def is evaluated only for unset slots.
func (s *Slot[T]) Or(def func() T) T {
	if s.set {
		return s.value
	}
	return def()
}
