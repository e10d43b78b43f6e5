package tree

import (
	"fmt"
	"slices"
	"strings"

	"booklib/internal/book"
	"booklib/internal/bookfile"
)

// Kind identifies the variant of a node.
type Kind int

const (
	KindRoot Kind = iota
	KindCategory
	KindAuthor
	KindSeries
	KindTitleLetter
	KindTag
	KindBook
	KindFile
)

var kindNames = [...]string{"root", "category", "author", "series", "letter", "tag", "book", "file"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Category ids, in display order.
const (
	Favorites = "favorites"
	Recent    = "recent"
	ByAuthor  = "byAuthor"
	ByTitle   = "byTitle"
	BySeries  = "bySeries"
	ByTag     = "byTag"
	FileTree  = "fileTree"
	Found     = "found"
)

var categoryOrder = []string{Favorites, Recent, ByAuthor, ByTitle, BySeries, ByTag, FileTree, Found}

var categoryNames = map[string]string{
	Favorites: "Favorites",
	Recent:    "Recent",
	ByAuthor:  "By Author",
	ByTitle:   "By Title",
	BySeries:  "By Series",
	ByTag:     "By Tag",
	FileTree:  "File Tree",
	Found:     "Found",
}

// Node is one element of the index tree. Nodes are not safe for concurrent
// use; the owner serialises access.
type Node struct {
	kind     Kind
	id       string
	name     string
	parent   *Node
	children []*Node
	ordered  bool // children keep insertion order

	book    *book.Book
	author  book.Author
	tag     *book.Tag
	file    *bookfile.File
	pattern string
}

// NewRoot returns a root with the categories that always exist.
func NewRoot() *Node {
	root := &Node{kind: KindRoot}
	for _, id := range []string{Favorites, Recent, ByAuthor, ByTitle, ByTag, FileTree} {
		root.Category(id)
	}
	return root
}

func (n *Node) Kind() Kind { return n.kind }
func (n *Node) ID() string { return n.id }
func (n *Node) Name() string { return n.name }
func (n *Node) Parent() *Node { return n.parent }
func (n *Node) Book() *book.Book { return n.book }
func (n *Node) File() *bookfile.File { return n.file }

// Author returns the author of an author node.
func (n *Node) Author() book.Author { return n.author }

// Tag returns the tag level of a tag node.
func (n *Node) Tag() *book.Tag { return n.tag }

// Pattern returns the search pattern of the found category.
func (n *Node) Pattern() string { return n.pattern }

// Children returns a copy of the child list.
func (n *Node) Children() []*Node { return slices.Clone(n.children) }

// Len returns the number of direct children.
func (n *Node) Len() int { return len(n.children) }

// Key returns the ids from the root down to n.
func (n *Node) Key() []string {
	if n.parent == nil {
		return nil
	}
	return append(n.parent.Key(), n.id)
}

// Lookup walks path from n and returns the node it names, or nil.
func (n *Node) Lookup(path ...string) *Node {
	cur := n
	for _, id := range path {
		cur = cur.child(id)
		if cur == nil {
			return nil
		}
	}
	return cur
}

func (n *Node) child(id string) *Node {
	for _, c := range n.children {
		if c.id == id {
			return c
		}
	}
	return nil
}

// HasCategory reports whether the root currently holds category id.
func (n *Node) HasCategory(id string) bool {
	return n.child(id) != nil
}

// Category returns category id, creating it in its display position.
func (n *Node) Category(id string) *Node {
	if c := n.child(id); c != nil {
		return c
	}
	c := &Node{
		kind:    KindCategory,
		id:      id,
		name:    categoryNames[id],
		ordered: id == Favorites || id == Recent || id == Found,
	}
	rank := slices.Index(categoryOrder, id)
	pos := len(n.children)
	for i, other := range n.children {
		if slices.Index(categoryOrder, other.id) > rank {
			pos = i
			break
		}
	}
	n.insertAt(c, pos)
	return c
}

// NewFound replaces any found category with an empty one for pattern.
func (n *Node) NewFound(pattern string) *Node {
	n.RemoveCategory(Found)
	c := n.Category(Found)
	c.pattern = pattern
	return c
}

// RemoveCategory detaches category id if present.
func (n *Node) RemoveCategory(id string) {
	if c := n.child(id); c != nil {
		c.Detach()
	}
}

// Detach removes n from its parent.
func (n *Node) Detach() {
	p := n.parent
	if p == nil {
		return
	}
	if i := slices.Index(p.children, n); i >= 0 {
		p.children = slices.Delete(p.children, i, i+1)
	}
	n.parent = nil
}

// Clear removes every child of n.
func (n *Node) Clear() {
	for _, c := range n.children {
		c.parent = nil
	}
	n.children = nil
}

func (n *Node) insertAt(c *Node, pos int) {
	c.parent = n
	n.children = slices.Insert(n.children, pos, c)
}

func (n *Node) insert(c *Node) *Node {
	if n.ordered {
		n.insertAt(c, len(n.children))
		return c
	}
	pos, _ := slices.BinarySearchFunc(n.children, c, n.compare)
	n.insertAt(c, pos)
	return c
}

func (n *Node) findOrInsert(match func(*Node) bool, create func() *Node) *Node {
	for _, c := range n.children {
		if match(c) {
			return c
		}
	}
	return n.insert(create())
}

// AddBook adds a leaf for b, or returns the existing one.
func (n *Node) AddBook(b *book.Book) *Node {
	return n.findOrInsert(
		func(c *Node) bool { return c.kind == KindBook && c.book.Equal(b) },
		func() *Node { return &Node{kind: KindBook, id: b.Key(), book: b} },
	)
}

// BookLeaf returns the direct leaf for b, or nil.
func (n *Node) BookLeaf(b *book.Book) *Node {
	for _, c := range n.children {
		if c.kind == KindBook && c.book.Equal(b) {
			return c
		}
	}
	return nil
}

// ContainsBook reports whether b appears anywhere below n.
func (n *Node) ContainsBook(b *book.Book) bool {
	for _, c := range n.children {
		if c.kind == KindBook && c.book.Equal(b) {
			return true
		}
		if c.ContainsBook(b) {
			return true
		}
	}
	return false
}

// AuthorNode returns the group for a, creating it when needed.
func (n *Node) AuthorNode(a book.Author) *Node {
	return n.findOrInsert(
		func(c *Node) bool { return c.kind == KindAuthor && c.author == a },
		func() *Node {
			return &Node{kind: KindAuthor, id: a.DisplayName + " (" + a.SortKey + ")", name: a.DisplayName, author: a}
		},
	)
}

// SeriesNode returns the group for series name, creating it when needed.
func (n *Node) SeriesNode(name string) *Node {
	return n.findOrInsert(
		func(c *Node) bool { return c.kind == KindSeries && c.name == name },
		func() *Node { return &Node{kind: KindSeries, id: name, name: name} },
	)
}

// LetterNode returns the title group for letter, creating it when needed.
func (n *Node) LetterNode(letter string) *Node {
	return n.findOrInsert(
		func(c *Node) bool { return c.kind == KindTitleLetter && c.name == letter },
		func() *Node { return &Node{kind: KindTitleLetter, id: letter, name: letter} },
	)
}

// TagNode returns the node for the full tag chain, creating levels as
// needed.
func (n *Node) TagNode(tag *book.Tag) *Node {
	cur := n
	for _, t := range tag.Path() {
		parent, level := cur, t
		cur = parent.findOrInsert(
			func(c *Node) bool { return c.kind == KindTag && c.name == level.Name },
			func() *Node { return &Node{kind: KindTag, id: level.Name, name: level.Name, tag: level} },
		)
	}
	return cur
}

// FileNode returns the file-tree entry for f, creating it when needed.
func (n *Node) FileNode(f *bookfile.File) *Node {
	return n.findOrInsert(
		func(c *Node) bool { return c.kind == KindFile && c.file.Equal(f) },
		func() *Node { return &Node{kind: KindFile, id: f.ShortName(), name: f.ShortName(), file: f} },
	)
}

// RemoveBook removes the leaves for b directly under n, and with recursive
// from every descendant. Group nodes left empty are pruned; categories and
// file entries are never removed. Returns whether anything was removed.
func (n *Node) RemoveBook(b *book.Book, recursive bool) bool {
	removed := false
	for i := 0; i < len(n.children); {
		c := n.children[i]
		switch {
		case c.kind == KindBook && c.book.Equal(b):
			c.parent = nil
			n.children = slices.Delete(n.children, i, i+1)
			removed = true
			continue
		case recursive && c.kind != KindBook:
			if c.RemoveBook(b, true) {
				removed = true
				if len(c.children) == 0 && c.kind != KindCategory && c.kind != KindFile {
					c.parent = nil
					n.children = slices.Delete(n.children, i, i+1)
					continue
				}
			}
		}
		i++
	}
	return removed
}

// MoveBookToFront puts b first among n's children and trims the list to
// limit entries.
func (n *Node) MoveBookToFront(b *book.Book, limit int) {
	if leaf := n.BookLeaf(b); leaf != nil {
		leaf.Detach()
	}
	n.insertAt(&Node{kind: KindBook, id: b.Key(), book: b}, 0)
	for len(n.children) > limit {
		n.children[len(n.children)-1].Detach()
	}
}

// RefreshBook points the direct leaf for b at b, keeping its position.
// Returns false when n has no such leaf.
func (n *Node) RefreshBook(b *book.Book) bool {
	leaf := n.BookLeaf(b)
	if leaf == nil {
		return false
	}
	leaf.book = b
	return true
}

// Books returns the distinct books below n in tree order.
func (n *Node) Books() []*book.Book {
	var out []*book.Book
	seen := make(map[string]struct{})
	n.walk(func(c *Node) {
		if c.kind != KindBook {
			return
		}
		if _, ok := seen[c.book.Key()]; ok {
			return
		}
		seen[c.book.Key()] = struct{}{}
		out = append(out, c.book)
	})
	return out
}

func (n *Node) walk(fn func(*Node)) {
	for _, c := range n.children {
		fn(c)
		c.walk(fn)
	}
}

// compare orders two children of n. Groups come before books.
func (n *Node) compare(a, b *Node) int {
	if ga, gb := a.kind != KindBook, b.kind != KindBook; ga != gb {
		if ga {
			return -1
		}
		return 1
	}
	if a.kind == KindBook && n.kind == KindSeries {
		if c := compareSeriesIndex(a.book, b.book); c != 0 {
			return c
		}
	}
	return strings.Compare(a.sortKey(), b.sortKey())
}

func compareSeriesIndex(a, b *book.Book) int {
	var ia, ib float64
	if s := a.Series(); s != nil {
		ia = s.Index
	}
	if s := b.Series(); s != nil {
		ib = s.Index
	}
	switch {
	case ia < ib:
		return -1
	case ia > ib:
		return 1
	}
	return 0
}

func (n *Node) sortKey() string {
	switch n.kind {
	case KindBook:
		return strings.ToLower(n.book.Title()) + "\x00" + n.book.Key()
	case KindAuthor:
		return strings.ToLower(n.author.SortKey) + "\x00" + strings.ToLower(n.author.DisplayName)
	case KindFile:
		return strings.ToLower(n.name) + "\x00" + n.file.Key()
	default:
		return strings.ToLower(n.name)
	}
}

func (n *Node) String() string {
	if n.kind == KindBook {
		return "book:" + n.book.Key()
	}
	return n.kind.String() + ":" + n.id
}
