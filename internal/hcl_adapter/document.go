package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/yxonic/fret/internal/config"
	"github.com/yxonic/fret/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// documentRoot is the decoded shape of a workspace config document:
//
//	entry "main" {
//	  type = "Model"
//	  param "x" {
//	    type  = number
//	    value = 5
//	  }
//	  submodule "sub" {
//	    ref = "sub"
//	  }
//	}
type documentRoot struct {
	Entries []*entryBlock `hcl:"entry,block"`
}

type entryBlock struct {
	Name       string         `hcl:"name,label"`
	Type       string         `hcl:"type"`
	Params     []*paramValue  `hcl:"param,block"`
	Submodules []*submoduleRef `hcl:"submodule,block"`
}

type paramValue struct {
	Name  string         `hcl:"name,label"`
	Type  hcl.Expression `hcl:"type"`
	Value hcl.Expression `hcl:"value"`
}

type submoduleRef struct {
	Name string `hcl:"name,label"`
	Ref  string `hcl:"ref"`
}

// EncodeEntries renders entries as a workspace config document. The output
// is stable for equal input.
func EncodeEntries(entries []config.Entry) []byte {
	f := hclwrite.NewEmptyFile()
	root := f.Body()
	for i, e := range entries {
		if i > 0 {
			root.AppendNewline()
		}
		body := root.AppendNewBlock("entry", []string{e.Name}).Body()
		body.SetAttributeValue("type", cty.StringVal(e.Spec.Type()))
		for _, p := range e.Spec.Params() {
			pb := body.AppendNewBlock("param", []string{p.Name}).Body()
			pb.SetAttributeRaw("type", typeTokens(p.Value.Type()))
			pb.SetAttributeValue("value", p.Value)
		}
		for _, r := range e.Spec.Refs() {
			rb := body.AppendNewBlock("submodule", []string{r.Param}).Body()
			rb.SetAttributeValue("ref", cty.StringVal(r.Entry))
		}
	}
	return hclwrite.Format(f.Bytes())
}

func typeTokens(ty cty.Type) hclwrite.Tokens {
	return hclwrite.Tokens{{Type: hclsyntax.TokenIdent, Bytes: []byte(TypeString(ty))}}
}

// DecodeEntries parses a workspace config document. filename is used only
// in diagnostics.
func DecodeEntries(ctx context.Context, src []byte, filename string) ([]config.Entry, error) {
	logger := ctxlog.FromContext(ctx)

	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, diags)
	}

	var root documentRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, diags)
	}

	entries := make([]config.Entry, 0, len(root.Entries))
	seen := make(map[string]bool, len(root.Entries))
	for _, eb := range root.Entries {
		if seen[eb.Name] {
			return nil, fmt.Errorf("%s: duplicate entry %q", filename, eb.Name)
		}
		seen[eb.Name] = true

		params := make([]config.Setting, 0, len(eb.Params))
		for _, pv := range eb.Params {
			ty, err := ParseType(ctx, pv.Type)
			if err != nil {
				return nil, fmt.Errorf("%s: entry %q, param %q: %w", filename, eb.Name, pv.Name, err)
			}
			val, diags := pv.Value.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("%s: entry %q, param %q: %w", filename, eb.Name, pv.Name, diags)
			}
			val, err = convert.Convert(val, ty)
			if err != nil {
				return nil, fmt.Errorf("%s: entry %q, param %q: value does not match type %s: %w", filename, eb.Name, pv.Name, TypeString(ty), err)
			}
			params = append(params, config.Setting{Name: pv.Name, Value: val})
		}

		refs := make([]config.Ref, 0, len(eb.Submodules))
		for _, sr := range eb.Submodules {
			refs = append(refs, config.Ref{Param: sr.Name, Entry: sr.Ref})
		}

		spec, err := config.NewSpec(eb.Type, params, refs)
		if err != nil {
			return nil, fmt.Errorf("%s: entry %q: %w", filename, eb.Name, err)
		}
		entries = append(entries, config.Entry{Name: eb.Name, Spec: spec})
	}

	logger.Debug("Decoded workspace document.", "file", filename, "entries", len(entries))
	return entries, nil
}
