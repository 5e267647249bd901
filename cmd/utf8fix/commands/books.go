package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	"utf8fix/lib/restyutil"
	"utf8fix/lib/scrapers/books"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var booksBaseUrl *string
var booksPages *int
var booksOutput *string
var booksDb *string
var booksDetails *bool
var booksDumpDir *string

func init() {
	booksBaseUrl = booksCmd.Flags().String("base-url", books.DefaultBaseUrl, "The listing page to start from.")
	booksPages = booksCmd.Flags().Int("pages", 1, "Maximum number of listing pages to follow.")
	booksOutput = booksCmd.Flags().StringP("out", "o", "libros.csv", "The csv file to write.")
	booksDb = booksCmd.Flags().String("db", "", "Also upsert the books into this sqlite database.")
	booksDetails = booksCmd.Flags().Bool("details", false, "Fetch the product page of every book.")
	booksDumpDir = booksCmd.Flags().String("dump", "", "Write every http exchange into this directory.")
	rootCmd.AddCommand(booksCmd)
}

func (c *BooksConfig) applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("base-url") || c.BaseUrl == "" {
		c.BaseUrl = *booksBaseUrl
	}
	if flags.Changed("pages") {
		c.Pages = *booksPages
	}
	if flags.Changed("out") {
		c.Output = *booksOutput
	}
	if flags.Changed("db") {
		c.Database = *booksDb
	}
	if flags.Changed("details") {
		c.Details = *booksDetails
	}
	if flags.Changed("dump") {
		c.DumpDir = *booksDumpDir
	}
}

var booksCmd = &cobra.Command{
	Use:   "books [--pages 1] [--out libros.csv] [--db <path/to/books.db>]",
	Short: "Scrapes book titles and prices from books.toscrape.com into a csv file.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(*configPath, cmd.Flags().Changed("config"))
		if err != nil {
			return err
		}
		cfg.Books.applyFlags(cmd)

		t1 := time.Now()
		result, err := runBooks(cmd.Context(), cfg.Books)
		if err != nil {
			return err
		}
		slog.Info("scraping time", "seconds", time.Since(t1).Seconds())

		renderBooks(cmd.OutOrStdout(), result, 5)
		abs, err := filepath.Abs(cfg.Books.Output)
		if err != nil {
			abs = cfg.Books.Output
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d books saved to %s\n", len(result), abs)
		return nil
	},
}

func runBooks(ctx context.Context, cfg BooksConfig) ([]books.Book, error) {
	opts := books.ClientOptions{
		BaseUrl: cfg.BaseUrl,
		Timeout: cfg.Timeout(),
	}
	if cfg.DumpDir != "" {
		out, err := restyutil.NewFilesystemOutput(cfg.DumpDir)
		if err != nil {
			return nil, err
		}
		opts.Instrument = out
	}

	client, err := books.NewClient(opts)
	if err != nil {
		return nil, err
	}
	result, err := client.Scrape(ctx, books.ScrapeOptions{
		MaxPages:    cfg.Pages,
		WithDetails: cfg.Details,
	})
	if err != nil {
		return nil, err
	}

	err = writeBooksCSV(cfg.Output, result)
	if err != nil {
		return nil, err
	}

	if cfg.Database != "" {
		store, err := books.OpenStore(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		defer store.Close()
		err = store.SaveBooks(ctx, result, time.Now())
		if err != nil {
			return nil, fmt.Errorf("save books: %w", err)
		}
	}

	return result, nil
}

func writeBooksCSV(path string, result []books.Book) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	err = books.WriteCSV(f, result)
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func renderBooks(w io.Writer, result []books.Book, limit int) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "title", "price"})
	for i, b := range result {
		if i >= limit {
			break
		}
		t.AppendRow(table.Row{i + 1, b.Title, b.Price})
	}
	if len(result) > limit {
		t.AppendFooter(table.Row{"", fmt.Sprintf("... %d more", len(result)-limit), ""})
	}
	t.Render()
}
