// This file contains the logic for parsing HCL type expressions (e.g., `string`,
// `list(number)`) into their corresponding cty.Type objects, and for writing
// a cty.Type back out in the same syntax.

package hcl_adapter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/yxonic/fret/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// ParseType converts an HCL type expression into its cty.Type equivalent.
// A nil expression means `any`.
func ParseType(ctx context.Context, expr hcl.Expression) (cty.Type, error) {
	logger := ctxlog.FromContext(ctx)

	if expr == nil {
		logger.Debug("Type expression is nil, defaulting to any.")
		return cty.DynamicPseudoType, nil
	}

	switch v := expr.(type) {
	case *hclsyntax.FunctionCallExpr:
		logger.Debug("Parsing type expression as a function call.", "call", v.Name)
		if len(v.Args) != 1 {
			return cty.DynamicPseudoType, fmt.Errorf("the %s() type constructor requires exactly one argument, got %d", v.Name, len(v.Args))
		}

		switch v.Name {
		case "object":
			return parseObjectType(ctx, v.Args[0])
		case "tuple":
			tupleExpr, ok := v.Args[0].(*hclsyntax.TupleConsExpr)
			if !ok {
				return cty.DynamicPseudoType, fmt.Errorf("the argument to tuple() must be a list of types like [number, string], got %T", v.Args[0])
			}
			elems := make([]cty.Type, 0, len(tupleExpr.Exprs))
			for i, e := range tupleExpr.Exprs {
				et, err := ParseType(ctx, e)
				if err != nil {
					return cty.DynamicPseudoType, fmt.Errorf("in tuple element %d: %w", i, err)
				}
				elems = append(elems, et)
			}
			return cty.Tuple(elems), nil
		}

		elementType, err := ParseType(ctx, v.Args[0])
		if err != nil {
			return cty.DynamicPseudoType, err
		}
		logger.Debug("Parsed collection element type.", "type", elementType.FriendlyName())

		switch v.Name {
		case "list":
			return cty.List(elementType), nil
		case "map":
			return cty.Map(elementType), nil
		case "set":
			return cty.Set(elementType), nil
		default:
			return cty.DynamicPseudoType, fmt.Errorf("unknown type constructor function %q", v.Name)
		}

	case *hclsyntax.ScopeTraversalExpr:
		if len(v.Traversal) != 1 {
			return cty.DynamicPseudoType, fmt.Errorf("invalid type keyword: traversal path is not a single identifier")
		}
		rootName := v.Traversal.RootName()
		switch rootName {
		case "string":
			return cty.String, nil
		case "number":
			return cty.Number, nil
		case "bool":
			return cty.Bool, nil
		case "any":
			return cty.DynamicPseudoType, nil
		default:
			return cty.DynamicPseudoType, fmt.Errorf("unknown primitive type %q", rootName)
		}

	default:
		return cty.DynamicPseudoType, fmt.Errorf("unsupported expression for type definition: %T", v)
	}
}

func parseObjectType(ctx context.Context, arg hclsyntax.Expression) (cty.Type, error) {
	objExpr, ok := arg.(*hclsyntax.ObjectConsExpr)
	if !ok {
		return cty.DynamicPseudoType, fmt.Errorf("the argument to object() must be an object literal like { key = type, ... }, got %T", arg)
	}

	attrTypes := make(map[string]cty.Type, len(objExpr.Items))
	for _, item := range objExpr.Items {
		var key string
		if keyExpr, ok := item.KeyExpr.(*hclsyntax.ObjectConsKeyExpr); ok {
			switch kexpr := keyExpr.Wrapped.(type) {
			case *hclsyntax.ScopeTraversalExpr:
				if len(kexpr.Traversal) == 1 {
					key = kexpr.Traversal.RootName()
				}
			case *hclsyntax.TemplateExpr:
				if len(kexpr.Parts) == 1 {
					if lit, isLit := kexpr.Parts[0].(*hclsyntax.LiteralValueExpr); isLit && lit.Val.Type().Equals(cty.String) {
						key = lit.Val.AsString()
					}
				}
			}
		}
		if key == "" {
			return cty.DynamicPseudoType, fmt.Errorf("invalid key in object type definition: keys must be simple identifiers or quoted strings, not complex expressions")
		}

		valueType, err := ParseType(ctx, item.ValueExpr)
		if err != nil {
			return cty.DynamicPseudoType, fmt.Errorf("in object attribute '%s': %w", key, err)
		}
		attrTypes[key] = valueType
	}
	return cty.Object(attrTypes), nil
}

// ParseTypeString parses the textual form produced by TypeString.
func ParseTypeString(ctx context.Context, src string) (cty.Type, error) {
	expr, diags := hclsyntax.ParseExpression([]byte(src), "<type>", hcl.InitialPos)
	if diags.HasErrors() {
		return cty.DynamicPseudoType, fmt.Errorf("invalid type %q: %w", src, diags)
	}
	return ParseType(ctx, expr)
}

// TypeString renders ty in the syntax accepted by ParseType.
func TypeString(ty cty.Type) string {
	switch {
	case ty == cty.DynamicPseudoType:
		return "any"
	case ty == cty.String:
		return "string"
	case ty == cty.Number:
		return "number"
	case ty == cty.Bool:
		return "bool"
	case ty.IsListType():
		return "list(" + TypeString(ty.ElementType()) + ")"
	case ty.IsMapType():
		return "map(" + TypeString(ty.ElementType()) + ")"
	case ty.IsSetType():
		return "set(" + TypeString(ty.ElementType()) + ")"
	case ty.IsTupleType():
		parts := make([]string, 0, len(ty.TupleElementTypes()))
		for _, et := range ty.TupleElementTypes() {
			parts = append(parts, TypeString(et))
		}
		return "tuple([" + strings.Join(parts, ", ") + "])"
	case ty.IsObjectType():
		attrs := ty.AttributeTypes()
		names := make([]string, 0, len(attrs))
		for name := range attrs {
			names = append(names, name)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, name := range names {
			key := name
			if !hclsyntax.ValidIdentifier(name) {
				key = fmt.Sprintf("%q", name)
			}
			parts = append(parts, key+" = "+TypeString(attrs[name]))
		}
		return "object({" + strings.Join(parts, ", ") + "})"
	}
	return ty.FriendlyName()
}
