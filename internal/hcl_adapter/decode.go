package hcl_adapter

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

var ctyValueType = reflect.TypeOf(cty.Value{})

// Decode fills the Go value target points to from val. Struct fields are
// matched by `cty:"name"` tag; fields without a matching attribute are left
// untouched, so a constructor may pre-fill fields it does not declare.
// Fields of type cty.Value receive the value as is, and `any` fields get
// the ToNative form.
func Decode(val cty.Value, target any) error {
	ptr := reflect.ValueOf(target)
	if ptr.Kind() != reflect.Pointer || ptr.IsNil() {
		return fmt.Errorf("decode target must be a non-nil pointer, got %T", target)
	}
	return decodeInto(val, ptr.Elem())
}

func decodeInto(val cty.Value, dst reflect.Value) error {
	if dst.Type() == ctyValueType {
		if val.IsKnown() {
			dst.Set(reflect.ValueOf(val))
		}
		return nil
	}
	if !val.IsKnown() || val.IsNull() {
		return nil
	}

	ty := val.Type()
	switch dst.Kind() {
	case reflect.Struct:
		if !ty.IsObjectType() {
			return fmt.Errorf("cannot decode %s into %s", ty.FriendlyName(), dst.Type())
		}
		attrs := val.AsValueMap()
		for i := 0; i < dst.NumField(); i++ {
			field := dst.Type().Field(i)
			name, _, _ := strings.Cut(field.Tag.Get("cty"), ",")
			if !field.IsExported() || name == "" || name == "-" {
				continue
			}
			attr, ok := attrs[name]
			if !ok {
				continue
			}
			if err := decodeInto(attr, dst.Field(i)); err != nil {
				return fmt.Errorf("in attribute '%s': %w", name, err)
			}
		}
		return nil

	case reflect.Interface:
		native, err := ToNative(val)
		if err != nil {
			return err
		}
		if native != nil {
			dst.Set(reflect.ValueOf(native))
		}
		return nil

	case reflect.Map:
		if !ty.IsMapType() && !ty.IsObjectType() {
			return fmt.Errorf("cannot decode %s into %s", ty.FriendlyName(), dst.Type())
		}
		m := reflect.MakeMap(dst.Type())
		for it := val.ElementIterator(); it.Next(); {
			k, e := it.Element()
			elem := reflect.New(dst.Type().Elem()).Elem()
			if err := decodeInto(e, elem); err != nil {
				return fmt.Errorf("in key '%s': %w", k.AsString(), err)
			}
			m.SetMapIndex(reflect.ValueOf(k.AsString()).Convert(dst.Type().Key()), elem)
		}
		dst.Set(m)
		return nil

	case reflect.Slice:
		if !ty.IsListType() && !ty.IsTupleType() && !ty.IsSetType() {
			return fmt.Errorf("cannot decode %s into %s", ty.FriendlyName(), dst.Type())
		}
		if ty.IsTupleType() {
			// Tuples from literals such as [1, 2] become lists of the
			// element type first.
			elemTy, err := gocty.ImpliedType(reflect.Zero(dst.Type().Elem()).Interface())
			if err == nil {
				if list, err := convert.Convert(val, cty.List(elemTy)); err == nil {
					val = list
				}
			}
		}
		s := reflect.MakeSlice(dst.Type(), val.LengthInt(), val.LengthInt())
		i := 0
		for it := val.ElementIterator(); it.Next(); i++ {
			_, e := it.Element()
			if err := decodeInto(e, s.Index(i)); err != nil {
				return fmt.Errorf("in element %d: %w", i, err)
			}
		}
		dst.Set(s)
		return nil
	}

	return gocty.FromCtyValue(val, dst.Addr().Interface())
}
