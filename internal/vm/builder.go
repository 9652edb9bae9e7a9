package vm

import (
	"reflect"

	buildrt "piecemeal/runtime"
)

// Builder is one mutable builder instance. The first misuse (unknown setter,
// wrong value type) is kept and returned by Build, so setter chains stay fluent.
type Builder struct {
	bind   *Binding
	values []reflect.Value
	set    []bool
	err    error
}

// NewBuilder returns a builder with every slot unset.
func (b *Binding) NewBuilder() *Builder {
	n := len(b.desc.Slots)
	return &Builder{
		bind:   b,
		values: make([]reflect.Value, n),
		set:    make([]bool, n),
	}
}

// Set calls the setter named setter with v: the slot is overwritten and
// marked set. Setting the same slot again replaces the previous value.
func (bl *Builder) Set(setter string, v any) *Builder {
	if bl.err != nil {
		return bl
	}
	i, ok := bl.bind.setters[setter]
	if !ok {
		bl.err = errorf(ErrUnknownSetter, "%s has no setter %s", bl.bind.desc.BuilderName, setter)
		return bl
	}
	rv, err := bl.bind.convert(i, v)
	if err != nil {
		bl.err = err
		return bl
	}
	bl.values[i] = rv
	bl.set[i] = true
	return bl
}

// IsSet reports whether the slot of the named parameter has been assigned.
func (bl *Builder) IsSet(param string) bool {
	for i, s := range bl.bind.desc.Slots {
		if s.Name == param {
			return bl.set[i]
		}
	}
	return false
}

// Build validates required slots and invokes the constructor. A missing
// required slot yields a *buildrt.BuildError naming every unset one and no
// instance is constructed.
func (bl *Builder) Build() (any, error) {
	if bl.err != nil {
		return nil, bl.err
	}
	d := bl.bind.desc

	var unset buildrt.Unset
	for _, i := range d.Build.Required {
		unset.Check(d.Slots[i].Name, bl.set[i])
	}
	if err := unset.Err(d.TypeName); err != nil {
		return nil, err
	}

	args := make([]reflect.Value, len(d.Slots))
	for i := range d.Slots {
		if bl.set[i] {
			args[i] = bl.values[i]
			continue
		}
		df := bl.bind.defaults[i]
		in := make([]reflect.Value, len(df.refs))
		for k, j := range df.refs {
			in[k] = args[j]
		}
		args[i] = df.fn.Call(in)[0].Convert(bl.bind.params[i])
	}

	var out []reflect.Value
	if d.Build.Variadic {
		out = bl.bind.ctor.CallSlice(args)
	} else {
		out = bl.bind.ctor.Call(args)
	}
	if d.Build.ReturnsError {
		if err, _ := out[1].Interface().(error); err != nil {
			return nil, err
		}
	}
	return out[0].Interface(), nil
}

func (b *Binding) convert(i int, v any) (reflect.Value, error) {
	t := b.params[i]
	if v == nil {
		switch t.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, errorf(ErrTypeMismatch, "%s: nil is not a valid %s", b.desc.Slots[i].Name, t)
	}
	rv := reflect.ValueOf(v)
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}, errorf(ErrTypeMismatch, "%s: cannot use %s as %s", b.desc.Slots[i].Name, rv.Type(), t)
	}
	out := reflect.New(t).Elem()
	out.Set(rv)
	return out, nil
}
