package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/yxonic/fret/internal/config"
	"github.com/yxonic/fret/internal/ctxlog"
	"github.com/yxonic/fret/internal/fsutil"
	"github.com/yxonic/fret/internal/hcl_adapter"
	"github.com/yxonic/fret/internal/resolver"
	"github.com/yxonic/fret/internal/state"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

const snapshotExt = ".snap"

// snapshot is the on-disk form of a saved instance. Env holds the
// configuration document of the instance and its submodules at save time.
type snapshot struct {
	Name    string     `json:"name"`
	Type    string     `json:"type"`
	Env     string     `json:"env"`
	State   state.Dict `json:"state"`
	SavedAt time.Time  `json:"saved_at"`
}

// Save writes the declared state of inst, together with the configuration
// used to build it, to snapshot/<name>.<tag>.snap and returns the path.
func (w *Workspace) Save(ctx context.Context, inst *Instance, tag string) (string, error) {
	if tag == "" || strings.ContainsAny(tag, `/\`) {
		return "", fmt.Errorf("invalid snapshot tag %q", tag)
	}
	dict, err := inst.StateDict()
	if err != nil {
		return "", fmt.Errorf("extracting state of %q: %w", inst.Name, err)
	}
	snap := snapshot{
		Name:    inst.Name,
		Type:    inst.Spec.Type(),
		Env:     string(hcl_adapter.EncodeEntries(inst.Entries())),
		State:   dict,
		SavedAt: w.now().UTC(),
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding snapshot of %q: %w", inst.Name, err)
	}

	path := w.SnapshotPath(inst.Name + "." + tag + snapshotExt)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := fsutil.WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing snapshot: %w", err)
	}
	ctxlog.FromContext(ctx).Info("Saved snapshot.", "entry", inst.Name, "tag", tag, "path", path, "fields", len(dict))
	return path, nil
}

// Load rebuilds an instance from a snapshot and restores its state. ref is
// a snapshot path, a "<name>.<tag>" pair or a bare tag that matches exactly
// one snapshot. The workspace entries are not consulted or changed.
func (w *Workspace) Load(ctx context.Context, ref string) (*Instance, error) {
	path, err := w.findSnapshot(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", path, err)
	}

	entries, err := hcl_adapter.DecodeEntries(ctx, []byte(snap.Env), path)
	if err != nil {
		return nil, err
	}
	env := make(map[string]config.Spec, len(entries))
	for _, e := range entries {
		if err := w.checkSchema(e.Spec); err != nil {
			return nil, err
		}
		env[e.Name] = e.Spec
	}

	root, ok := env[snap.Name]
	if !ok {
		return nil, fmt.Errorf("snapshot %s does not record entry %q", path, snap.Name)
	}
	if root.Type() != snap.Type {
		return nil, &SchemaMismatchError{Type: snap.Type, Reason: fmt.Sprintf("recorded configuration is of type %s", root.Type())}
	}
	info, err := w.res.Inspect(snap.Type)
	if err != nil {
		return nil, err
	}
	for name := range snap.State {
		if !slices.Contains(info.States, name) {
			return nil, &SchemaMismatchError{Type: snap.Type, Reason: fmt.Sprintf("state field %q is no longer declared", name)}
		}
	}

	inst, err := w.build(ctx, snap.Name, func(n string) (config.Spec, bool) {
		s, ok := env[n]
		return s, ok
	})
	if err != nil {
		return nil, err
	}
	if err := inst.LoadStateDict(snap.State); err != nil {
		return nil, fmt.Errorf("restoring state of %q: %w", snap.Name, err)
	}
	ctxlog.FromContext(ctx).Info("Loaded snapshot.", "entry", snap.Name, "path", path, "saved_at", snap.SavedAt)
	return inst, nil
}

// Snapshots lists saved snapshot files, sorted.
func (w *Workspace) Snapshots() ([]string, error) {
	matches, err := doublestar.FilepathGlob(w.SnapshotPath("*" + snapshotExt))
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)
	return matches, nil
}

func (w *Workspace) findSnapshot(ref string) (string, error) {
	if strings.HasSuffix(ref, snapshotExt) {
		for _, p := range []string{ref, w.SnapshotPath(ref)} {
			if _, err := os.Stat(p); err == nil {
				return p, nil
			}
		}
		return "", fmt.Errorf("snapshot %q not found", ref)
	}

	exact := w.SnapshotPath(ref + snapshotExt)
	if _, err := os.Stat(exact); err == nil {
		return exact, nil
	}
	matches, err := doublestar.FilepathGlob(w.SnapshotPath("*." + ref + snapshotExt))
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no snapshot tagged %q", ref)
	case 1:
		return matches[0], nil
	}
	slices.Sort(matches)
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = strings.TrimSuffix(filepath.Base(m), snapshotExt)
	}
	return "", fmt.Errorf("tag %q is ambiguous: %s", ref, strings.Join(names, ", "))
}

// checkSchema verifies a recorded spec against the current declaration.
func (w *Workspace) checkSchema(spec config.Spec) error {
	typ := spec.Type()
	info, err := w.res.Inspect(typ)
	var unknown *resolver.UnknownTypeError
	if errors.As(err, &unknown) {
		return &SchemaMismatchError{Type: typ, Reason: "type is not registered"}
	} else if err != nil {
		return err
	}
	mismatch := func(format string, args ...any) error {
		return &SchemaMismatchError{Type: typ, Reason: fmt.Sprintf(format, args...)}
	}

	recorded := make(map[string]bool)
	for _, s := range spec.Params() {
		recorded[s.Name] = true
		p, ok := info.Schema.Lookup(s.Name)
		switch {
		case !ok:
			return mismatch("parameter %q is no longer declared", s.Name)
		case p.IsSubmodule():
			return mismatch("parameter %q is now a submodule", s.Name)
		}
		if p.Type != cty.NilType {
			if _, err := convert.Convert(s.Value, p.Type); err != nil {
				return mismatch("parameter %q: %v", s.Name, err)
			}
		}
	}
	for _, r := range spec.Refs() {
		recorded[r.Param] = true
		p, ok := info.Schema.Lookup(r.Param)
		if !ok || !p.IsSubmodule() {
			return mismatch("submodule %q is no longer declared", r.Param)
		}
	}
	for _, name := range info.Schema.Names() {
		if !recorded[name] {
			return mismatch("parameter %q is not recorded", name)
		}
	}
	return nil
}
