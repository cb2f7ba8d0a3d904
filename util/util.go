package util

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pawgram/media-services/constants"
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

// StringListContainsFold is like StringListContains but ignores case.
func StringListContainsFold(list []string, item string) bool {
	if list != nil {
		for i := range list {
			if strings.EqualFold(list[i], item) {
				return true
			}
		}
	}
	return false
}

// FileExists returns true if the file at path exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// TestsAreRunning returns true when code is running under "go test".
func TestsAreRunning() bool {
	return strings.HasSuffix(os.Args[0], ".test")
}

// ContentTypeFor returns the MIME type for fileName based on its
// extension, or application/octet-stream if the extension is not in
// our table. This is a deliberate fixed mapping; we never sniff bytes.
func ContentTypeFor(fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if contentType, ok := constants.ContentTypeFor[ext]; ok {
		return contentType
	}
	return constants.DefaultContentType
}
