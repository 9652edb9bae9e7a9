// Package vm executes builder descriptors in memory.
//
// A Binding attaches a descriptor to real Go functions: the primary
// constructor and one function per default expression. Builders created from
// it behave like generated builders: setters overwrite a slot and mark it
// set, Build reports every unset required slot as a *buildrt.BuildError and
// otherwise calls the constructor positionally, evaluating defaults in
// parameter order so later defaults can see earlier arguments.
package vm

import (
	"reflect"

	"piecemeal/internal/synth"
)

var errorType = reflect.TypeFor[error]()

// Binding is immutable and may be shared between goroutines; Builders may not.
type Binding struct {
	desc     *synth.Descriptor
	ctor     reflect.Value
	params   []reflect.Type
	defaults map[int]defaultFunc
	setters  map[string]int
}

type defaultFunc struct {
	fn   reflect.Value
	refs []int
}

// Bind checks ctor and defaults against d.
//
// ctor must be a function with one parameter per slot. defaults maps a
// parameter name to a function whose parameters are the values of the
// parameters the default expression refers to (Default.Refs, in order) and
// whose single result is assignable to the parameter type. Every optional
// slot needs a default; defaults for required slots are ignored.
func Bind(d *synth.Descriptor, ctor any, defaults map[string]any) (*Binding, error) {
	if d == nil {
		return nil, errorf(ErrBindingMismatch, "nil descriptor")
	}
	cv := reflect.ValueOf(ctor)
	if cv.Kind() != reflect.Func {
		return nil, errorf(ErrBindingMismatch, "%s: constructor is %T, not a function", d.TypeName, ctor)
	}
	ct := cv.Type()
	if ct.NumIn() != len(d.Slots) {
		return nil, errorf(ErrBindingMismatch, "%s: constructor takes %d arguments, descriptor has %d slots", d.TypeName, ct.NumIn(), len(d.Slots))
	}
	if ct.IsVariadic() != d.Build.Variadic {
		return nil, errorf(ErrBindingMismatch, "%s: constructor variadic=%v, descriptor variadic=%v", d.TypeName, ct.IsVariadic(), d.Build.Variadic)
	}
	wantOut := 1
	if d.Build.ReturnsError {
		wantOut = 2
	}
	if ct.NumOut() != wantOut || (wantOut == 2 && ct.Out(1) != errorType) {
		return nil, errorf(ErrBindingMismatch, "%s: constructor results %s do not match descriptor", d.TypeName, ct)
	}

	b := &Binding{
		desc:     d,
		ctor:     cv,
		params:   make([]reflect.Type, ct.NumIn()),
		defaults: make(map[int]defaultFunc),
		setters:  make(map[string]int, len(d.Setters)),
	}
	for i := range b.params {
		b.params[i] = ct.In(i)
	}
	for _, s := range d.Setters {
		b.setters[s.Name] = s.Slot
	}

	slotIndex := make(map[string]int, len(d.Slots))
	for i, s := range d.Slots {
		slotIndex[s.Name] = i
	}
	for name, fn := range defaults {
		i, ok := slotIndex[name]
		if !ok {
			return nil, errorf(ErrBindingMismatch, "%s: default for unknown parameter %q", d.TypeName, name)
		}
		slot := d.Slots[i]
		if slot.Required {
			continue
		}
		df, err := b.bindDefault(slot, slotIndex, fn)
		if err != nil {
			return nil, err
		}
		b.defaults[i] = df
	}
	for i, s := range d.Slots {
		if _, ok := b.defaults[i]; !s.Required && !ok {
			return nil, errorf(ErrMissingDefault, "%s: optional parameter %q has no default function", d.TypeName, s.Name)
		}
	}
	return b, nil
}

func (b *Binding) bindDefault(slot synth.FieldSlot, slotIndex map[string]int, fn any) (defaultFunc, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return defaultFunc{}, errorf(ErrBindingMismatch, "default of %q is %T, not a function", slot.Name, fn)
	}
	ft := fv.Type()
	var refs []string
	if slot.Default != nil {
		refs = slot.Default.Refs
	}
	if ft.NumIn() != len(refs) || ft.NumOut() != 1 || !ft.Out(0).AssignableTo(b.params[slot.Index]) {
		return defaultFunc{}, errorf(ErrBindingMismatch, "default of %q has type %s, want func of %v returning %s", slot.Name, ft, refs, b.params[slot.Index])
	}
	df := defaultFunc{fn: fv, refs: make([]int, len(refs))}
	for i, ref := range refs {
		j, ok := slotIndex[ref]
		if !ok || j >= slot.Index {
			return defaultFunc{}, errorf(ErrBindingMismatch, "default of %q refers to %q, which is not an earlier parameter", slot.Name, ref)
		}
		if !b.params[j].AssignableTo(ft.In(i)) {
			return defaultFunc{}, errorf(ErrBindingMismatch, "default of %q: argument %d is %s, parameter %q is %s", slot.Name, i, ft.In(i), ref, b.params[j])
		}
		df.refs[i] = j
	}
	return df, nil
}

// Descriptor returns the bound descriptor.
func (b *Binding) Descriptor() *synth.Descriptor { return b.desc }
