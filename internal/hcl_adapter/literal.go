package hcl_adapter

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// ParseLiteral evaluates src as a constant HCL expression such as `5`,
// `true`, `"text"`, `[1, 2]` or `{a = 1}`. Variables and function calls are
// rejected.
func ParseLiteral(src string) (cty.Value, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "<value>", hcl.InitialPos)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("invalid value %q: %s", src, diags.Error())
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return cty.NilVal, fmt.Errorf("invalid value %q: %s", src, diags.Error())
	}
	return val, nil
}

// ParseRaw converts a raw command-line string into a value of type ty.
// Strings are taken verbatim. For `any`, text that is not a valid literal is
// kept as a string.
func ParseRaw(raw string, ty cty.Type) (cty.Value, error) {
	if ty == cty.String {
		return cty.StringVal(raw), nil
	}
	val, err := ParseLiteral(raw)
	if err != nil {
		if ty == cty.DynamicPseudoType {
			return cty.StringVal(raw), nil
		}
		return cty.NilVal, err
	}
	converted, err := convert.Convert(val, ty)
	if err != nil {
		return cty.NilVal, fmt.Errorf("cannot use %q as %s: %w", raw, TypeString(ty), err)
	}
	return converted, nil
}
