package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

const idTimeLayout = "20060102150405"

var (
	idPattern  = regexp.MustCompile(`^(.+)-(\d{14})_*$`)
	tagPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
)

// ResolveID picks the run identifier for tag. With resume set, the most
// recent existing run of tag is returned if there is one. Otherwise a new
// id "<tag>-<YYYYmmddHHMMSS>" is made from now, with "_" appended until it
// does not collide with an existing run.
func ResolveID(store Store, tag string, resume bool, now time.Time) (string, error) {
	if tag == "" {
		tag = "run"
	}
	if !tagPattern.MatchString(tag) {
		return "", fmt.Errorf("invalid run tag %q", tag)
	}

	if resume {
		matches, err := doublestar.FilepathGlob(store.SnapshotPath(tag+"-*", RecordFile))
		if err != nil {
			return "", err
		}
		var ids []string
		for _, m := range matches {
			id := filepath.Base(filepath.Dir(m))
			if sub := idPattern.FindStringSubmatch(id); sub != nil && sub[1] == tag {
				ids = append(ids, id)
			}
		}
		if len(ids) > 0 {
			slices.Sort(ids)
			return ids[len(ids)-1], nil
		}
	}

	id := tag + "-" + now.Format(idTimeLayout)
	for {
		_, err := os.Stat(store.SnapshotPath(id))
		if os.IsNotExist(err) {
			return id, nil
		} else if err != nil {
			return "", err
		}
		id += "_"
	}
}
