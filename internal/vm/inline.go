package vm

import (
	"reflect"
)

// Inline mirrors the generated Build<Type> function: a fresh builder, one
// call to configure, then Build. Errors from Build are returned unchanged.
func (b *Binding) Inline(configure func(*Builder)) (any, error) {
	bl := b.NewBuilder()
	configure(bl)
	return bl.Build()
}

// ToBuilder seeds a builder with the field values of instance; every slot
// starts set. instance must be of the constructor's result type.
func (b *Binding) ToBuilder(instance any) (*Builder, error) {
	tb := b.desc.ToBuilder
	if tb == nil {
		return nil, errorf(ErrNoToBuilder, "%s has no ToBuilder", b.desc.TypeName)
	}
	rv := reflect.ValueOf(instance)
	if !rv.IsValid() || rv.Type() != b.ctor.Type().Out(0) {
		return nil, errorf(ErrNotAnInstance, "ToBuilder: %T is not a %s", instance, b.ctor.Type().Out(0))
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, errorf(ErrNotAnInstance, "ToBuilder: nil %s", rv.Type())
		}
		rv = rv.Elem()
	}

	bl := b.NewBuilder()
	for i, name := range tb.Fields {
		f := rv.FieldByName(name)
		if !f.IsValid() || !f.CanInterface() {
			return nil, errorf(ErrBindingMismatch, "%s has no readable field %s", rv.Type(), name)
		}
		v := reflect.New(b.params[i]).Elem()
		v.Set(f)
		bl.values[i] = v
		bl.set[i] = true
	}
	return bl, nil
}

// Copy mirrors the generated Copy method: ToBuilder, transform, Build.
func (b *Binding) Copy(instance any, transform func(*Builder)) (any, error) {
	bl, err := b.ToBuilder(instance)
	if err != nil {
		return nil, err
	}
	transform(bl)
	return bl.Build()
}
