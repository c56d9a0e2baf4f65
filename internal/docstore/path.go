package docstore

import (
	"fmt"
	"strings"
)

// ValidateCollection checks a slash-separated collection path. Collection
// paths have an odd number of segments: "posts", "conversations/c1/messages".
func ValidateCollection(path string) error {
	segs := strings.Split(path, "/")
	if len(segs)%2 == 0 {
		return fmt.Errorf("%w: collection %q", ErrInvalidPath, path)
	}
	for _, s := range segs {
		if s == "" {
			return fmt.Errorf("%w: collection %q", ErrInvalidPath, path)
		}
	}
	return nil
}

// ValidateID checks a document id.
func ValidateID(id string) error {
	if id == "" || strings.Contains(id, "/") {
		return fmt.Errorf("%w: document id %q", ErrInvalidPath, id)
	}
	return nil
}

// ValidateField checks a dotted field path.
func ValidateField(path string) error {
	for _, s := range splitField(path) {
		if s == "" {
			return fmt.Errorf("%w: field %q", ErrInvalidPath, path)
		}
	}
	return nil
}

// SplitCollection splits a collection path into its parent document path and
// the slash-free collection group name: "conversations/c1/messages" yields
// ("conversations/c1", "conversations.messages").
func SplitCollection(path string) (parent, group string) {
	segs := strings.Split(path, "/")
	if len(segs) == 1 {
		return "", path
	}
	names := make([]string, 0, len(segs)/2+1)
	for i := 0; i < len(segs); i += 2 {
		names = append(names, segs[i])
	}
	return strings.Join(segs[:len(segs)-1], "/"), strings.Join(names, ".")
}

func splitField(path string) []string {
	return strings.Split(path, ".")
}
