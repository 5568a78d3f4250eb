package state

import (
	"fmt"
	"maps"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Component is implemented by objects whose state survives restarts.
type Component interface {
	StateDict() (map[string]cty.Value, error)
	LoadStateDict(state map[string]cty.Value) error
}

// Of returns a Component for obj. Declared fields are read by struct tag.
// If obj implements Component itself, its own entries are merged over the
// declared fields.
func Of(obj any, fields []string) Component {
	if c, ok := obj.(Component); ok && len(fields) == 0 {
		return c
	}
	return &declared{obj: obj, fields: fields}
}

type declared struct {
	obj    any
	fields []string
}

func (d *declared) StateDict() (map[string]cty.Value, error) {
	out, err := Extract(d.obj, d.fields)
	if err != nil {
		return nil, err
	}
	if c, ok := d.obj.(Component); ok {
		own, err := c.StateDict()
		if err != nil {
			return nil, err
		}
		maps.Copy(out, own)
	}
	return out, nil
}

func (d *declared) LoadStateDict(state map[string]cty.Value) error {
	if err := Restore(d.obj, d.fields, state); err != nil {
		return err
	}
	if c, ok := d.obj.(Component); ok {
		return c.LoadStateDict(state)
	}
	return nil
}

// Extract reads the named fields of the struct pointed to by obj.
func Extract(obj any, fields []string) (map[string]cty.Value, error) {
	out := make(map[string]cty.Value, len(fields))
	if len(fields) == 0 {
		return out, nil
	}
	sv, err := structValue(obj)
	if err != nil {
		return nil, err
	}
	for _, name := range fields {
		fv, ok := fieldByName(sv, name)
		if !ok {
			return nil, fmt.Errorf("%T has no state field %q", obj, name)
		}
		native := fv.Interface()
		ty, err := gocty.ImpliedType(native)
		if err != nil {
			return nil, fmt.Errorf("state field %q: %w", name, err)
		}
		val, err := gocty.ToCtyValue(native, ty)
		if err != nil {
			return nil, fmt.Errorf("state field %q: %w", name, err)
		}
		out[name] = val
	}
	return out, nil
}

// Restore writes the named fields of the struct pointed to by obj. Fields
// missing from state are left untouched.
func Restore(obj any, fields []string, state map[string]cty.Value) error {
	if len(fields) == 0 {
		return nil
	}
	sv, err := structValue(obj)
	if err != nil {
		return err
	}
	for _, name := range fields {
		val, ok := state[name]
		if !ok {
			continue
		}
		fv, ok := fieldByName(sv, name)
		if !ok {
			return fmt.Errorf("%T has no state field %q", obj, name)
		}
		if !fv.CanSet() {
			return fmt.Errorf("state field %q of %T cannot be set", name, obj)
		}
		if err := gocty.FromCtyValue(val, fv.Addr().Interface()); err != nil {
			return fmt.Errorf("restoring state field %q: %w", name, err)
		}
	}
	return nil
}

func structValue(obj any) (reflect.Value, error) {
	v := reflect.ValueOf(obj)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("state fields require a pointer to a struct, got %T", obj)
	}
	return v.Elem(), nil
}

// fieldByName finds a field by `cty` tag, falling back to the Go name.
// Fields promoted from embedded structs are included.
func fieldByName(sv reflect.Value, name string) (reflect.Value, bool) {
	fields := reflect.VisibleFields(sv.Type())
	for _, f := range fields {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		if strings.Split(f.Tag.Get("cty"), ",")[0] == name {
			return sv.FieldByIndex(f.Index), true
		}
	}
	for _, f := range fields {
		if f.IsExported() && !f.Anonymous && strings.EqualFold(f.Name, name) {
			return sv.FieldByIndex(f.Index), true
		}
	}
	return reflect.Value{}, false
}

// Same reports whether a and b are the same component. Components made
// by Of are compared by the object they wrap. Values of uncomparable types
// are compared by identity of their data pointer.
func Same(a, b any) bool {
	if d, ok := a.(*declared); ok {
		a = d.obj
	}
	if d, ok := b.(*declared); ok {
		b = d.obj
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func:
		return va.Pointer() == vb.Pointer()
	}
	return false
}
