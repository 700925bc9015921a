package util

import (
	"os"
	"path/filepath"
	"strings"
)

// StringListContains returns true if the list of strings contains item.
func StringListContains(list []string, item string) bool {
	if list != nil {
		for i := range list {
			if list[i] == item {
				return true
			}
		}
	}
	return false
}

// IsEmptySearchTerm returns true if the search param should be treated
// as "match everything": blank, a bare wildcard, or a lone percent sign.
func IsEmptySearchTerm(param string) bool {
	return param == "" || param == "*" || param == "%"
}

// LooksLikeUUID returns true if s has the shape of a UUID. It does not
// verify version bits, just the 8-4-4-4-12 hex layout.
func LooksLikeUUID(s string) bool {
	if len(s) != 36 {
		return false
	}
	for i, c := range s {
		switch i {
		case 8, 13, 18, 23:
			if c != '-' {
				return false
			}
		default:
			isHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
			if !isHex {
				return false
			}
		}
	}
	return true
}

// FileExists returns true if the file at path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ExpandTilde expands the leading ~ in a path to the current user's
// home directory.
func ExpandTilde(dirName string) (string, error) {
	if !strings.HasPrefix(dirName, "~") {
		return dirName, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, strings.TrimPrefix(dirName, "~")), nil
}

// TestsAreRunning returns true when running under "go test".
func TestsAreRunning() bool {
	return strings.HasSuffix(os.Args[0], ".test")
}
