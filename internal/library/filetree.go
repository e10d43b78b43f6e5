package library

import (
	"context"
	"fmt"
	"strings"

	"booklib/internal/bookfile"
	"booklib/internal/tree"
)

// ExpandFileTree lists the directory or archive at path below the file tree
// category and returns a snapshot of it. Subdirectories and archives become
// file entries; files holding library books become book leaves. An empty
// path returns the category itself, holding the books directory.
func (l *Library) ExpandFileTree(ctx context.Context, path ...string) (*tree.View, error) {
	l.mu.Lock()
	category := l.root.Category(tree.FileTree)
	if category.Len() == 0 {
		category.FileNode(l.booksDir)
	}
	node := category.Lookup(path...)
	l.mu.Unlock()

	if node == nil {
		return nil, fmt.Errorf("no file tree entry at %s", strings.Join(path, "/"))
	}
	if node.Kind() != tree.KindFile {
		return l.viewOf(node), nil
	}

	children, err := node.File().Children()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", node.File().Key(), err)
	}

	type entry struct {
		file  *bookfile.File
		group bool
	}
	entries := make([]entry, 0, len(children))
	for _, child := range children {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if l.skipHidden && strings.HasPrefix(child.ShortName(), ".") {
			continue
		}
		entries = append(entries, entry{file: child, group: child.IsDirectory() || child.IsArchive()})
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range entries {
		if b := l.books[e.file.Key()]; b != nil {
			node.AddBook(b)
			continue
		}
		if e.group {
			node.FileNode(e.file)
		}
	}
	return node.View(1), nil
}

func (l *Library) viewOf(n *tree.Node) *tree.View {
	l.mu.Lock()
	defer l.mu.Unlock()
	return n.View(1)
}
