// Package archive stores raw snapshots of the fetched case report page so a
// past run can be re-parsed later, possibly with another pattern set.
package archive

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SnapshotPrefix is the key prefix under which page snapshots are stored.
const SnapshotPrefix = "snapshots/"

// keyTimeLayout sorts lexically in time order.
const keyTimeLayout = "20060102T150405Z"

// Key returns the snapshot key of a page fetched at t by run.
func Key(t time.Time, run uuid.UUID) string {
	return SnapshotPrefix + t.UTC().Format(keyTimeLayout) + "-" + run.String() + ".html"
}

// validateKey rejects keys that could escape the archive root.
func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("archive: invalid key %q", key)
	}
	if path.Clean(key) != key || key == ".." || strings.HasPrefix(key, "../") {
		return fmt.Errorf("archive: invalid key %q", key)
	}
	return nil
}
