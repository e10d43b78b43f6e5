package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"booklib/internal/library"
	"booklib/internal/tree"
)

// DefaultSearchTimeout bounds how long search waits for its result.
const DefaultSearchTimeout = time.Minute

// withSession opens a session around fn.
func withSession(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, opts)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}

func newScanCommand(opts *globalOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Build the library once and print statistics",
		Long: `Scan verifies the catalogued books against the books directory, reads
new and changed files and prints the resulting library statistics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			return withSession(cmd, opts, func(_ context.Context, s *session) error {
				stats := s.lib.Stats()
				if output != outputText {
					return render(cmd.OutOrStdout(), output, stats)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Books:     %d\n", stats.TotalBooks)
				fmt.Fprintf(out, "Authors:   %d\n", stats.TotalAuthors)
				fmt.Fprintf(out, "Favorites: %d\n", stats.TotalFavorites)
				fmt.Fprintf(out, "Recent:    %d\n", stats.TotalRecent)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json, yaml")
	return cmd
}

func newSearchCommand(opts *globalOptions) *cobra.Command {
	var (
		output  string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "search <pattern>",
		Short: "Find books matching a pattern",
		Long: `Search lists the books whose title, authors, tags or file name contain
the pattern, ignoring case.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				found, err := search(ctx, s.lib, args[0], timeout)
				if err != nil {
					return err
				}
				if found == nil {
					if output == outputText {
						fmt.Fprintf(cmd.OutOrStdout(), "No books match %q\n", args[0])
						return nil
					}
					found = &tree.View{Kind: tree.KindCategory.String(), ID: tree.Found, Pattern: args[0]}
				}
				return render(cmd.OutOrStdout(), output, found)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json, yaml")
	cmd.Flags().DurationVar(&timeout, "timeout", DefaultSearchTimeout, "how long to wait for the result")
	return cmd
}

// search runs a book search and returns the found category, or nil when
// nothing matched.
func search(ctx context.Context, lib *library.Library, pattern string, timeout time.Duration) (*tree.View, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	lib.StartBookSearch(pattern)
	if err := lib.Wait(ctx); err != nil {
		return nil, fmt.Errorf("search %q: %w", pattern, err)
	}

	found := lib.Tree(tree.Found)
	if found == nil || found.Pattern != pattern {
		return nil, nil
	}
	return found, nil
}

func newTreeCommand(opts *globalOptions) *cobra.Command {
	var (
		output string
		depth  int
	)
	cmd := &cobra.Command{
		Use:   "tree [node-id...]",
		Short: "Print a node of the index tree",
		Long: `Tree prints the node reached by following the given node ids from the
root, e.g. "booklib tree byAuthor". Without ids it prints the categories.
Paths below fileTree are expanded from disk as needed.`,
		Example: `  booklib tree
  booklib tree byTitle --depth 2
  booklib tree fileTree books -o yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				view, err := lookupView(ctx, s.lib, depth, args)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), output, view)
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json, yaml")
	cmd.Flags().IntVarP(&depth, "depth", "d", 1, "levels of children to include; -1 for all")
	return cmd
}

func lookupView(ctx context.Context, lib *library.Library, depth int, path []string) (*tree.View, error) {
	// File tree nodes exist only once their parent has been expanded.
	if len(path) > 0 && path[0] == tree.FileTree {
		for i := 1; i <= len(path); i++ {
			if _, err := lib.ExpandFileTree(ctx, path[1:i]...); err != nil {
				return nil, err
			}
		}
	}
	view := lib.Subtree(depth, path...)
	if view == nil {
		return nil, fmt.Errorf("no tree node at %v", path)
	}
	return view, nil
}

func newRecentCommand(opts *globalOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently opened books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			return withSession(cmd, opts, func(_ context.Context, s *session) error {
				return render(cmd.OutOrStdout(), output, s.lib.Tree(tree.Recent))
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json, yaml")

	cmd.AddCommand(&cobra.Command{
		Use:   "add <book>",
		Short: "Move a book to the front of the recent list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				b, err := s.book(ctx, args[0])
				if err != nil {
					return err
				}
				if err := s.lib.AddBookToRecentList(ctx, b); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Opened %s\n", b.Title())
				return nil
			})
		},
	})
	return cmd
}

func newFavoritesCommand(opts *globalOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Manage favorite books",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List favorite books",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			return withSession(cmd, opts, func(_ context.Context, s *session) error {
				return render(cmd.OutOrStdout(), output, s.lib.Tree(tree.Favorites))
			})
		},
	}
	list.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json, yaml")

	add := &cobra.Command{
		Use:   "add <book>",
		Short: "Add a book to the favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				b, err := s.book(ctx, args[0])
				if err != nil {
					return err
				}
				added, err := s.lib.AddBookToFavorites(ctx, b)
				if err != nil {
					return err
				}
				if added {
					fmt.Fprintf(cmd.OutOrStdout(), "Added %s to favorites\n", b.Title())
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is already a favorite\n", b.Title())
				}
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "remove <book>",
		Short: "Remove a book from the favorites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				b, err := s.book(ctx, args[0])
				if err != nil {
					return err
				}
				removed, err := s.lib.RemoveBookFromFavorites(ctx, b)
				if err != nil {
					return err
				}
				if removed {
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from favorites\n", b.Title())
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s is not a favorite\n", b.Title())
				}
				return nil
			})
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func newRemoveCommand(opts *globalOptions) *cobra.Command {
	var disk bool
	cmd := &cobra.Command{
		Use:   "remove <book>",
		Short: "Remove a book from the library",
		Long: `Remove takes a book out of the library, the recent list and the
favorites. With --disk its file is deleted too, which is refused when the
file holds other books.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, opts, func(ctx context.Context, s *session) error {
				b, err := s.book(ctx, args[0])
				if err != nil {
					return err
				}
				mode := library.RemoveFromLibrary
				if disk {
					if !s.lib.CanRemoveBookFile(b) {
						return fmt.Errorf("cannot delete the file of %s: it is shared or not on disk", b.Title())
					}
					mode = library.RemoveFromLibraryAndDisk
				}
				if _, err := s.lib.RemoveBook(ctx, b, mode); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", b.Title())
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&disk, "disk", false, "also delete the book file")
	return cmd
}
