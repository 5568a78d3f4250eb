package hcl_adapter

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/yxonic/fret/internal/config"
	"github.com/yxonic/fret/internal/ctxlog"
	"github.com/yxonic/fret/internal/fsutil"
	"github.com/zclconf/go-cty/cty"
)

// Loader is the HCL implementation of config.Loader. It reads `module`
// blocks from type manifests:
//
//	module "Model" {
//	  extends     = ["Base"]
//	  constructor = "NewModel"
//	  states      = ["step"]
//
//	  param "x" {
//	    type    = number
//	    default = 3
//	  }
//	  submodule "sub" {
//	    type       = "A"
//	    auto_build = true
//	  }
//	}
type Loader struct{}

// NewLoader creates a new HCL manifest loader.
func NewLoader() *Loader {
	return &Loader{}
}

type manifestRoot struct {
	Modules []*moduleBlock `hcl:"module,block"`
	Remain  hcl.Body       `hcl:",remain"`
}

type moduleBlock struct {
	Type        string            `hcl:"type,label"`
	Description string            `hcl:"description,optional"`
	Extends     []string          `hcl:"extends,optional"`
	Constructor string            `hcl:"constructor,optional"`
	States      []string          `hcl:"states,optional"`
	Params      []*paramBlock     `hcl:"param,block"`
	Submodules  []*submoduleBlock `hcl:"submodule,block"`
}

type paramBlock struct {
	Name        string         `hcl:"name,label"`
	Type        hcl.Expression `hcl:"type,optional"`
	Default     hcl.Expression `hcl:"default,optional"`
	Description string         `hcl:"description,optional"`
}

type submoduleBlock struct {
	Name        string  `hcl:"name,label"`
	Type        string  `hcl:"type,optional"`
	Default     *string `hcl:"default,optional"`
	AutoBuild   bool    `hcl:"auto_build,optional"`
	Description string  `hcl:"description,optional"`
}

// Load parses every .hcl file under the given paths. Paths that do not
// exist are skipped.
func (l *Loader) Load(ctx context.Context, paths ...string) ([]*config.Definition, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL manifest loader started.", "path_count", len(paths))

	var files []string
	seen := make(map[string]bool)
	for _, p := range paths {
		found, err := fsutil.FindFilesByExtension(p, ".hcl")
		if err != nil {
			return nil, fmt.Errorf("error accessing path %s: %w", p, err)
		}
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}

	parser := hclparse.NewParser()
	var defs []*config.Definition
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}

		var root manifestRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}

		for _, m := range root.Modules {
			def, err := translateModule(ctx, m)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
			defs = append(defs, def)
		}
	}

	logger.Debug("HCL manifest loading complete.", "files", len(files), "modules", len(defs))
	return defs, nil
}

func translateModule(ctx context.Context, m *moduleBlock) (*config.Definition, error) {
	def := &config.Definition{
		Type:        m.Type,
		Description: m.Description,
		Bases:       m.Extends,
		Constructor: m.Constructor,
		States:      m.States,
	}

	for _, pb := range m.Params {
		p := &config.Param{Name: pb.Name, Description: pb.Description, Type: cty.NilType}
		if isExprDefined(pb.Type) {
			ty, err := ParseType(ctx, pb.Type)
			if err != nil {
				return nil, fmt.Errorf("module %q, param %q: %w", m.Type, pb.Name, err)
			}
			p.Type = ty
			p.Submodule = config.SubmoduleNo
		}
		if isExprDefined(pb.Default) {
			val, diags := pb.Default.Value(nil)
			if diags.HasErrors() {
				return nil, fmt.Errorf("module %q, param %q: invalid default: %w", m.Type, pb.Name, diags)
			}
			p.Default = &val
		}
		def.Params = append(def.Params, p)
	}

	for _, sb := range m.Submodules {
		p := &config.Param{
			Name:        sb.Name,
			Description: sb.Description,
			Type:        cty.String,
			Submodule:   config.SubmoduleYes,
			SubType:     sb.Type,
			AutoBuild:   sb.AutoBuild,
		}
		if sb.Default != nil {
			v := cty.StringVal(*sb.Default)
			p.Default = &v
		}
		def.Params = append(def.Params, p)
	}

	return def, nil
}

// isExprDefined checks if an HCL expression was actually present in the
// source. gohcl populates omitted optional expression fields with a
// zero-width placeholder, so a nil check is insufficient.
func isExprDefined(expr hcl.Expression) bool {
	if expr == nil {
		return false
	}
	r := expr.Range()
	return r.End.Byte > r.Start.Byte
}
