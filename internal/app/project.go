package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/yxonic/fret/internal/fsutil"
	"github.com/yxonic/fret/internal/hcl_adapter"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/yaml.v3"
)

// ProjectFile is the name of the project file looked up from the working
// directory towards the filesystem root.
const ProjectFile = "fret.yaml"

// DefaultWorkspace is used when neither the project file nor a flag names
// a workspace.
const DefaultWorkspace = "ws/_default"

// Project is the content of fret.yaml.
type Project struct {
	Workspace string `yaml:"workspace"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// Defaults are project-level parameter defaults keyed by type name.
	Defaults map[string]map[string]any `yaml:"defaults"`
	// Manifests lists files or directories of HCL type manifests.
	Manifests []string `yaml:"manifests"`

	// Dir is the directory holding the project file. Relative paths are
	// resolved against it.
	Dir string `yaml:"-"`
}

// LoadProject finds fret.yaml starting at dir. A missing project file is
// not an error; the returned project is rooted at dir.
func LoadProject(dir string) (*Project, error) {
	path, ok := fsutil.FindUp(dir, ProjectFile)
	if !ok {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		return &Project{Dir: abs}, nil
	}
	return ReadProject(path)
}

// ReadProject parses the project file at path.
func ReadProject(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("project file %s does not exist", path)
		}
		return nil, err
	}
	p := &Project{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	abs, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	p.Dir = abs
	return p, nil
}

// WorkspacePath returns the workspace directory, resolved against Dir.
func (p *Project) WorkspacePath() string {
	ws := p.Workspace
	if ws == "" {
		ws = DefaultWorkspace
	}
	return p.resolve(ws)
}

// ManifestPaths returns the manifest locations, resolved against Dir.
func (p *Project) ManifestPaths() []string {
	paths := make([]string, 0, len(p.Manifests))
	for _, m := range p.Manifests {
		paths = append(paths, p.resolve(m))
	}
	return paths
}

// DefaultValues converts Defaults to cty values.
func (p *Project) DefaultValues() (map[string]map[string]cty.Value, error) {
	if len(p.Defaults) == 0 {
		return nil, nil
	}
	out := make(map[string]map[string]cty.Value, len(p.Defaults))
	for typ, params := range p.Defaults {
		vals := make(map[string]cty.Value, len(params))
		for name, raw := range params {
			v, err := hcl_adapter.ToValue(raw)
			if err != nil {
				return nil, fmt.Errorf("project default %s.%s: %w", typ, name, err)
			}
			vals[name] = v
		}
		out[typ] = vals
	}
	return out, nil
}

func (p *Project) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.Dir, path)
}
