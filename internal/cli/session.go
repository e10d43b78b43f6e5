package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"booklib/internal/book"
	"booklib/internal/bookfile"
	"booklib/internal/database"
	"booklib/internal/formats"
	"booklib/internal/library"
	"booklib/internal/startup"
)

var errNoSuchBook = errors.New("no such book")

// session is an opened catalog for a one-off command.
type session struct {
	config *startup.Config
	db     *database.Database
	lib    *library.Library
}

// openSession loads the configuration, opens the catalog and waits for the
// initial build to finish.
func openSession(ctx context.Context, opts *globalOptions) (*session, error) {
	config, err := startup.LoadConfig(opts.envDir)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := startup.PrepareDirectories(config); err != nil {
		return nil, err
	}

	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	lib, err := library.Open(ctx, libraryOptions(config, db))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open library: %w", err)
	}

	s := &session{config: config, db: db, lib: lib}
	if err := lib.Wait(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func libraryOptions(config *startup.Config, db *database.Database) library.Options {
	return library.Options{
		Store:      db,
		Resolver:   formats.Default(),
		BooksDir:   config.BooksDir,
		Locale:     config.Locale,
		SkipHidden: config.SkipHidden,
	}
}

// Close stops the library and closes the database.
func (s *session) Close() {
	s.lib.Close()
	_ = s.db.Close()
}

// book resolves a command line argument naming a book: a catalog id, or a
// path to a book file.
func (s *session) book(ctx context.Context, arg string) (*book.Book, error) {
	var (
		b   *book.Book
		err error
	)
	if id, convErr := strconv.ParseInt(arg, 10, 64); convErr == nil {
		b, err = s.lib.BookByID(ctx, id)
	} else {
		path, absErr := filepath.Abs(arg)
		if absErr != nil {
			return nil, absErr
		}
		b, err = s.lib.BookByFile(ctx, bookfile.Physical(path))
	}
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%w: %s", errNoSuchBook, arg)
	}
	return b, nil
}
