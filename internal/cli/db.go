package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"booklib/internal/database"
	"booklib/internal/startup"
)

// maintenanceTimeout bounds offline database operations.
const maintenanceTimeout = 5 * time.Minute

// CatalogStatus summarizes the stored catalog without building the library.
type CatalogStatus struct {
	Path         string    `json:"path" yaml:"path"`
	SizeBytes    int64     `json:"sizeBytes" yaml:"sizeBytes"`
	Books        int       `json:"books" yaml:"books"`
	MissingBooks int       `json:"missingBooks" yaml:"missingBooks"`
	Favorites    int       `json:"favorites" yaml:"favorites"`
	Recent       int       `json:"recent" yaml:"recent"`
	Tags         int       `json:"tags" yaml:"tags"`
	LastBuild    time.Time `json:"lastBuild" yaml:"lastBuild"`
	NeverBuilt   bool      `json:"neverBuilt" yaml:"neverBuilt"`
}

func newDBCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect and maintain the catalog database",
		Long: `Db works on the catalog database directly, without scanning the books
directory. Stop the server before running maintenance.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	var output string
	status := &cobra.Command{
		Use:   "status",
		Short: "Show what the catalog holds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			return withDatabase(cmd, opts, func(ctx context.Context, db *database.Database) error {
				st, err := catalogStatus(ctx, db)
				if err != nil {
					return err
				}
				if output != outputText {
					return render(cmd.OutOrStdout(), output, st)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Database:   %s (%d bytes)\n", st.Path, st.SizeBytes)
				fmt.Fprintf(out, "Books:      %d (%d missing)\n", st.Books, st.MissingBooks)
				fmt.Fprintf(out, "Favorites:  %d\n", st.Favorites)
				fmt.Fprintf(out, "Recent:     %d\n", st.Recent)
				fmt.Fprintf(out, "Tags:       %d\n", st.Tags)
				if st.NeverBuilt {
					fmt.Fprintln(out, "Last build: never")
				} else {
					fmt.Fprintf(out, "Last build: %s\n", st.LastBuild.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
	status.Flags().StringVarP(&output, "output", "o", outputText, "output format: text, json, yaml")

	vacuum := &cobra.Command{
		Use:   "vacuum",
		Short: "Compact the catalog database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(cmd, opts, func(ctx context.Context, db *database.Database) error {
				before := fileSize(db.Path())
				if err := db.Vacuum(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Vacuumed %s: %d -> %d bytes\n", db.Path(), before, fileSize(db.Path()))
				return nil
			})
		},
	}

	cmd.AddCommand(status, vacuum)
	return cmd
}

// withDatabase opens the configured catalog database around fn.
func withDatabase(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, db *database.Database) error) error {
	config, err := startup.LoadConfig(opts.envDir)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if err := startup.PrepareDirectories(config); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), maintenanceTimeout)
	defer cancel()

	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	return fn(ctx, db)
}

func catalogStatus(ctx context.Context, db *database.Database) (*CatalogStatus, error) {
	st := &CatalogStatus{Path: db.Path(), SizeBytes: fileSize(db.Path())}

	var err error
	if st.Books, err = db.CountBooks(ctx, true); err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}
	if st.MissingBooks, err = db.CountBooks(ctx, false); err != nil {
		return nil, fmt.Errorf("count missing books: %w", err)
	}
	favorites, err := db.LoadFavoriteIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load favorites: %w", err)
	}
	st.Favorites = len(favorites)
	recent, err := db.LoadRecentBookIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("load recent books: %w", err)
	}
	st.Recent = len(recent)
	tags, err := db.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	st.Tags = len(tags)
	if st.LastBuild, err = db.GetLastBuild(ctx); err != nil {
		return nil, fmt.Errorf("read last build: %w", err)
	}
	st.NeverBuilt = st.LastBuild.IsZero()
	return st, nil
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
