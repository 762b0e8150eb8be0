package envelope

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Path safety is a capability gate, not a best-effort filter: every
// filename the codec touches must pass ValidatePath before any filesystem
// operation. Request filenames come straight from untrusted agents.

var forbiddenFragments = []string{
	"..", "\\", "|", ";", "&", "$", ">", "<", "`", "\x00",
}

var reservedPrefixes = []string{
	"/dev/", "/proc/", "/sys/", "/.Trash",
}

// SafeName rejects names that could not pass ValidatePath under any root:
// empty names, blacklist fragments, or anything carrying path components.
func SafeName(name string) error {
	if name == "" {
		return fmt.Errorf("empty filename")
	}
	for _, frag := range forbiddenFragments {
		if strings.Contains(name, frag) {
			return fmt.Errorf("forbidden character sequence in filename %q", name)
		}
	}
	if filepath.Base(name) != name {
		return fmt.Errorf("filename %q carries path components", name)
	}
	return nil
}

// ValidatePath checks name against the injection blacklist and verifies
// that root/name, after normalization, still resolves inside root.
// It returns the cleaned absolute path on success.
func ValidatePath(root, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty filename")
	}
	for _, frag := range forbiddenFragments {
		if strings.Contains(name, frag) {
			return "", fmt.Errorf("forbidden character sequence in filename %q", name)
		}
	}

	abs := filepath.Clean(filepath.Join(root, name))
	cleanRoot := filepath.Clean(root)
	if abs != cleanRoot && !strings.HasPrefix(abs, cleanRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes root %q", name, root)
	}

	for _, prefix := range reservedPrefixes {
		if strings.HasPrefix(abs, prefix) {
			return "", fmt.Errorf("path %q resolves to a reserved location", name)
		}
	}

	return abs, nil
}
