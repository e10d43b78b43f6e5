package tree

// View is an immutable snapshot of a node for presentation.
type View struct {
	Kind        string   `json:"kind" yaml:"kind"`
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Path        []string `json:"path,omitempty" yaml:"path,omitempty"`
	BookID      int64    `json:"bookId,omitempty" yaml:"bookId,omitempty"`
	FileKey     string   `json:"fileKey,omitempty" yaml:"fileKey,omitempty"`
	Authors     []string `json:"authors,omitempty" yaml:"authors,omitempty"`
	Series      string   `json:"series,omitempty" yaml:"series,omitempty"`
	SeriesIndex float64  `json:"seriesIndex,omitempty" yaml:"seriesIndex,omitempty"`
	Pattern     string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	ChildCount  int      `json:"childCount" yaml:"childCount"`
	Children    []*View  `json:"children,omitempty" yaml:"children,omitempty"`
}

// View snapshots n and depth levels of descendants. A negative depth
// includes the whole subtree.
func (n *Node) View(depth int) *View {
	v := &View{
		Kind:       n.kind.String(),
		ID:         n.id,
		Name:       n.name,
		Path:       n.Key(),
		Pattern:    n.pattern,
		ChildCount: len(n.children),
	}

	switch n.kind {
	case KindBook:
		v.Name = n.book.Title()
		v.BookID = n.book.ID()
		v.FileKey = n.book.Key()
		for _, a := range n.book.Authors() {
			v.Authors = append(v.Authors, a.DisplayName)
		}
		if s := n.book.Series(); s != nil {
			v.Series, v.SeriesIndex = s.Name, s.Index
		}
	case KindFile:
		v.FileKey = n.file.Key()
	}

	if depth != 0 {
		for _, c := range n.children {
			v.Children = append(v.Children, c.View(depth-1))
		}
	}
	return v
}
