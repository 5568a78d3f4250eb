package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"

	"github.com/yxonic/fret/internal/config"
	"github.com/yxonic/fret/internal/hcl_adapter"
)

// Equal reports whether the entries a and b describe the same
// configuration: same type, equal parameter values and, recursively, equal
// referenced entries. Entry names themselves are not compared.
func (w *Workspace) Equal(a, b string) (bool, error) {
	specs := w.specs()
	type pair struct{ a, b string }
	assumed := make(map[pair]bool)

	var eq func(a, b string) (bool, error)
	eq = func(a, b string) (bool, error) {
		if assumed[pair{a, b}] {
			return true, nil
		}
		sa, ok := specs[a]
		if !ok {
			return false, &NotConfiguredError{Name: a}
		}
		sb, ok := specs[b]
		if !ok {
			return false, &NotConfiguredError{Name: b}
		}
		assumed[pair{a, b}] = true

		if sa.Type() != sb.Type() || !sameParams(sa, sb) {
			return false, nil
		}
		ra, rb := sa.Refs(), sb.Refs()
		if len(ra) != len(rb) {
			return false, nil
		}
		for i := range ra {
			if ra[i].Param != rb[i].Param {
				return false, nil
			}
			ok, err := eq(ra[i].Entry, rb[i].Entry)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
	return eq(a, b)
}

func sameParams(a, b config.Spec) bool {
	pa, pb := a.Params(), b.Params()
	return slices.EqualFunc(pa, pb, func(x, y config.Setting) bool {
		return x.Name == y.Name && x.Value.RawEquals(y.Value)
	})
}

// Fingerprint returns a stable hash of the configuration under name. The
// hashed text is the config document of name and everything it references,
// inlined as a tree and renamed by position, so entry names do not matter
// but value types do. Entries that are Equal have the same fingerprint.
func (w *Workspace) Fingerprint(name string) (string, error) {
	specs := w.specs()
	lookup := func(n string) (config.Spec, bool) {
		s, ok := specs[n]
		return s, ok
	}
	if _, err := referenceGraph(name, lookup); err != nil {
		return "", err
	}
	var entries []config.Entry
	if _, err := inline(name, specs, &entries); err != nil {
		return "", err
	}
	sum := sha256.Sum256(hcl_adapter.EncodeEntries(entries))
	return hex.EncodeToString(sum[:]), nil
}

// inline appends the spec under name to out, renamed to its position, after
// the specs it references. Shared references are inlined once per use. The
// reference graph must be acyclic.
func inline(name string, specs map[string]config.Spec, out *[]config.Entry) (string, error) {
	spec := specs[name]
	refs := spec.Refs()
	for i, r := range refs {
		pos, err := inline(r.Entry, specs, out)
		if err != nil {
			return "", err
		}
		refs[i].Entry = pos
	}
	renamed, err := config.NewSpec(spec.Type(), spec.Params(), refs)
	if err != nil {
		return "", err
	}
	pos := "_" + strconv.Itoa(len(*out))
	*out = append(*out, config.Entry{Name: pos, Spec: renamed})
	return pos, nil
}
