package library

import (
	"context"
	"path/filepath"
	"strings"

	"booklib/internal/book"
	"booklib/internal/logging"
	"booklib/internal/tree"
)

// UnknownAuthor files books that name no author.
var UnknownAuthor = book.Author{DisplayName: "Unknown Author"}

// groupTitlesByLetter decides whether titles are grouped by first letter:
// only for libraries of more than ten books that have noticeably more books
// than distinct letters.
func groupTitlesByLetter(books []*book.Book) bool {
	if len(books) <= 10 {
		return false
	}
	letters := make(map[string]struct{})
	for _, b := range books {
		if l := b.TitleLetter(); l != "" {
			letters[l] = struct{}{}
		}
	}
	return len(books) > len(letters)*5/4
}

// addBookLocked puts b into the book set and files it under every category
// it belongs to.
func (l *Library) addBookLocked(b *book.Book) {
	l.books[b.Key()] = b
	if id := b.ID(); id != book.Unsaved {
		l.byID[id] = b
	}

	authors := b.Authors()
	if len(authors) == 0 {
		authors = []book.Author{UnknownAuthor}
	}
	series := b.Series()

	byAuthor := l.root.Category(tree.ByAuthor)
	for _, a := range authors {
		node := byAuthor.AuthorNode(a)
		if series != nil {
			node.SeriesNode(series.Name).AddBook(b)
		} else {
			node.AddBook(b)
		}
	}

	if series != nil {
		l.root.Category(tree.BySeries).SeriesNode(series.Name).AddBook(b)
	}

	byTitle := l.root.Category(tree.ByTitle)
	if letter := b.TitleLetter(); l.groupTitles && letter != "" {
		byTitle.LetterNode(letter).AddBook(b)
	} else {
		byTitle.AddBook(b)
	}

	byTag := l.root.Category(tree.ByTag)
	for _, t := range b.Tags() {
		byTag.TagNode(t).AddBook(b)
	}

	if found := l.root.Lookup(tree.Found); found != nil && b.Matches(found.Pattern()) {
		found.AddBook(b)
	}
}

// forgetBookLocked drops b from the book set and from every category.
func (l *Library) forgetBookLocked(b *book.Book) {
	delete(l.books, b.Key())
	if id := b.ID(); id != book.Unsaved {
		delete(l.byID, id)
	}
	l.root.RemoveBook(b, true)
}

// RefreshBookInfo refiles b after its metadata changed. Its place in the
// favorites and recent lists is kept.
func (l *Library) RefreshBookInfo(b *book.Book) {
	if b == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.books, b.Key())
	for _, id := range []string{tree.Favorites, tree.Recent} {
		if n := l.root.Lookup(id); n != nil {
			n.RefreshBook(b)
		}
	}
	for _, id := range []string{tree.Found, tree.ByTitle, tree.BySeries, tree.ByAuthor, tree.ByTag} {
		if n := l.root.Lookup(id); n != nil {
			n.RemoveBook(b, true)
		}
	}
	l.addBookLocked(b)
	l.publishLocked(BookAdded)
}

// readBook resolves metadata for b. Books below the demo directory get a
// demo marker in the title and a demo tag.
func (l *Library) readBook(ctx context.Context, b *book.Book) bool {
	if err := b.ReadMetaInfo(ctx, l.resolver); err != nil {
		logging.Debug("Skipping %s: %v", b.Key(), err)
		return false
	}

	if physical := b.File().PhysicalFile(); physical != nil {
		demoPrefix := filepath.Join(l.booksDir.Path(), DemoDir) + string(filepath.Separator)
		if strings.HasPrefix(physical.Path(), demoPrefix) {
			b.SetTitle(b.Title() + " (demo)")
			b.AddTagPath("Demo")
		}
	}
	return true
}
