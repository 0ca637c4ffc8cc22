package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"reelstream/internal/assets"
	"reelstream/internal/catalog"
)

var (
	flagSearch string
	flagPage   int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List or search movies",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		movies, err := newCatalog().List(cmd.Context())
		if err != nil {
			return fmt.Errorf("listing movies: %w", err)
		}
		printMovies(cmd.OutOrStdout(), movies, flagSearch, flagPage)
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&flagSearch, "search", "s", "", "Search title and details")
	listCmd.Flags().IntVarP(&flagPage, "page", "p", 1, "Page number")
}

func newCatalog() *catalog.Client {
	return catalog.New(cfg.CatalogBase, catalog.WithLogger(log))
}

func printMovies(out io.Writer, movies []catalog.Movie, query string, page int) {
	if strings.TrimSpace(query) != "" {
		results := catalog.Search(movies, query, 0)
		if len(results) == 0 {
			fmt.Fprintf(out, "no movies match %q\n", query)
			return
		}
		for _, m := range results {
			printMovie(out, m)
		}
		return
	}
	p := catalog.Paginate(movies, nil, page, 24)
	for _, m := range p.Items {
		printMovie(out, m)
	}
	fmt.Fprintf(out, "page %d, %d movies", p.Page, p.Total)
	if p.HasNext {
		fmt.Fprintf(out, ", next: --page %d", p.Page+1)
	}
	fmt.Fprintln(out)
}

func printMovie(out io.Writer, m catalog.Movie) {
	variants := assets.Resolve(m)
	qs := make([]string, 0, len(variants))
	for _, v := range variants {
		qs = append(qs, v.Quality.String())
	}
	avail := strings.Join(qs, ",")
	if avail == "" {
		avail = "no source"
	}
	fmt.Fprintf(out, "%6d  %-40s  %s\n", m.ID, m.Title, avail)
}
