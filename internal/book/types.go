package book

import (
	"strings"
	"unicode"
)

// Author is a book author. Two authors are equal when both the display name
// and the sort key match.
type Author struct {
	DisplayName string `json:"displayName"`
	SortKey     string `json:"sortKey"`
}

// NewAuthor normalizes name and sortKey. An empty sort key is derived from
// the last word of the name, and whitespace before that word collapses to a
// single space. Returns false for an empty name.
func NewAuthor(name, sortKey string) (Author, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Author{}, false
	}

	sortKey = strings.TrimSpace(sortKey)
	if sortKey == "" {
		idx := strings.LastIndexFunc(name, unicode.IsSpace)
		if idx == -1 {
			sortKey = name
		} else {
			sortKey = name[idx+1:]
			name = strings.TrimRightFunc(name[:idx], unicode.IsSpace) + " " + sortKey
		}
	}

	return Author{DisplayName: name, SortKey: sortKey}, true
}

// TagSeparator separates levels of a nested tag path.
const TagSeparator = "/"

// Tag is a node in a hierarchy of tags such as "Fiction/Science Fiction".
type Tag struct {
	Name   string
	Parent *Tag
}

// NewTag returns a child tag of parent, or a top-level tag when parent is nil.
func NewTag(parent *Tag, name string) *Tag {
	return &Tag{Name: strings.TrimSpace(name), Parent: parent}
}

// TagFromPath builds a tag chain from a slash separated path. Empty
// segments are skipped; an empty path yields nil.
func TagFromPath(path string) *Tag {
	var tag *Tag
	for _, part := range strings.Split(path, TagSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			tag = NewTag(tag, part)
		}
	}
	return tag
}

// FullName returns the slash separated path from the root tag.
func (t *Tag) FullName() string {
	if t == nil {
		return ""
	}
	if t.Parent == nil {
		return t.Name
	}
	return t.Parent.FullName() + TagSeparator + t.Name
}

// Path returns the tag chain from the root down to t.
func (t *Tag) Path() []*Tag {
	if t == nil {
		return nil
	}
	return append(t.Parent.Path(), t)
}

// Equal compares tags by full name.
func (t *Tag) Equal(other *Tag) bool {
	return t.FullName() == other.FullName()
}

// SeriesInfo places a book inside a series.
type SeriesInfo struct {
	Name  string  `json:"name"`
	Index float64 `json:"index"`
}
