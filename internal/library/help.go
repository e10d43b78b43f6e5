package library

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"golang.org/x/text/language"

	"booklib/internal/book"
	"booklib/internal/bookfile"
	"booklib/internal/resources"
)

// helpCandidates lists the help document names to try for locale, most
// specific first: language and region, language alone, then the default.
func helpCandidates(locale string) []string {
	var names []string
	add := func(l string) {
		name := fmt.Sprintf(resources.HelpPattern, l)
		for _, n := range names {
			if n == name {
				return
			}
		}
		names = append(names, name)
	}

	if tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-")); err == nil && locale != "" {
		base, _ := tag.Base()
		if region, conf := tag.Region(); conf == language.Exact {
			add(base.String() + "_" + region.String())
		}
		add(base.String())
	}
	add(resources.DefaultHelpLocale)
	return names
}

// helpFile returns the help document for the configured locale.
func (l *Library) helpFile() *bookfile.File {
	names := helpCandidates(l.locale)
	for _, name := range names {
		if _, err := fs.Stat(l.resources, name); err == nil {
			return bookfile.Resource(l.resources, name)
		}
	}
	return bookfile.Resource(l.resources, names[len(names)-1])
}

// HelpBook returns the help document for the configured locale as a book.
func (l *Library) HelpBook(ctx context.Context) (*book.Book, error) {
	return l.BookByFile(ctx, l.helpFile())
}
