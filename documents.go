package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/docproc/gini-go/pkg/giniapi"
)

// Upload flags, bound in newUploadCmd().
var (
	flagDocType     string
	flagInterval    time.Duration
	flagUserID      string
	flagConcurrency int
)

// List/search flags.
var (
	flagLimit  int
	flagOffset int
)

func newUploadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload documents and wait for processing",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runUpload,
	}

	cmd.Flags().StringVar(&flagDocType, "doctype", "", "document type hint (e.g. Invoice)")
	cmd.Flags().DurationVar(&flagInterval, "interval", 0, "poll interval (default from config)")
	cmd.Flags().StringVar(&flagUserID, "user-id", "", "end-user identifier for gateway flows")
	cmd.Flags().IntVar(&flagConcurrency, "concurrency", 4, "parallel uploads")

	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <document-id>",
		Short: "Display a document's processing state and metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  runGet,
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <document-id>...",
		Short: "Delete documents",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runRm,
	}
}

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List documents",
		Args:  cobra.NoArgs,
		RunE:  runLs,
	}

	cmd.Flags().IntVar(&flagLimit, "limit", 0, "page size (default 20)")
	cmd.Flags().IntVar(&flagOffset, "offset", 0, "start offset")

	return cmd
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search documents by fulltext query",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}

	cmd.Flags().StringVar(&flagDocType, "doctype", "", "restrict results to a document type")
	cmd.Flags().IntVar(&flagLimit, "limit", 0, "page size (default 20)")
	cmd.Flags().IntVar(&flagOffset, "offset", 0, "start offset")

	return cmd
}

// uploadResult pairs an input file with its processed document for the
// final report.
type uploadResult struct {
	File     string `json:"file"`
	DocID    string `json:"document_id"`
	Progress string `json:"progress"`
	Total    string `json:"total_duration"`
}

func runUpload(_ *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()

	client, err := newSession(logger)
	if err != nil {
		return err
	}

	interval := flagInterval
	if interval == 0 {
		interval = resolvedCfg.PollIntervalDuration()
	}

	var (
		mu      sync.Mutex
		results []uploadResult
	)

	// Uploads run in parallel; the first fatal error cancels the rest.
	// Each goroutine owns its Document, only the results slice is shared.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(flagConcurrency)

	for _, path := range args {
		path := path
		g.Go(func() error {
			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("opening %s: %w", path, err)
			}
			defer f.Close()

			doc, err := client.Upload(gctx, f, giniapi.UploadOptions{
				Filename:       filepath.Base(path),
				DocType:        flagDocType,
				Interval:       interval,
				UserIdentifier: flagUserID,
				OnProgress: func(d *giniapi.Document) {
					logger.Debug("document processing", "file", path, "id", d.ID, "progress", string(d.Progress))
				},
			})
			if err != nil {
				return fmt.Errorf("uploading %s: %w", path, err)
			}

			mu.Lock()
			results = append(results, uploadResult{
				File:     path,
				DocID:    doc.ID,
				Progress: string(doc.Progress),
				Total:    formatDuration(doc.Duration.Total),
			})
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	persistSession(client, logger)

	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })

	if flagJSON {
		return printJSON(results)
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{r.File, r.DocID, r.Progress, r.Total})
	}

	printTable(os.Stdout, []string{"FILE", "ID", "PROGRESS", "DURATION"}, rows)

	return nil
}

// documentOutput is the JSON schema for `get --json`.
type documentOutput struct {
	ID       string            `json:"id"`
	Progress string            `json:"progress"`
	Links    map[string]string `json:"links"`
	Extra    map[string]any    `json:"extra,omitempty"`
}

func runGet(_ *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()

	client, err := newSession(logger)
	if err != nil {
		return err
	}

	doc, err := client.Get(ctx, args[0])
	if err != nil {
		return err
	}

	persistSession(client, logger)

	if flagJSON {
		return printJSON(documentOutput{
			ID:       doc.ID,
			Progress: string(doc.Progress),
			Links:    doc.Links,
			Extra:    doc.Extra,
		})
	}

	fmt.Printf("ID:       %s\n", doc.ID)
	fmt.Printf("Progress: %s\n", doc.Progress)

	for name, link := range doc.Links {
		fmt.Printf("Link:     %s = %s\n", name, link)
	}

	return nil
}

func runRm(_ *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()

	client, err := newSession(logger)
	if err != nil {
		return err
	}

	for _, id := range args {
		if err := client.Delete(ctx, id); err != nil {
			return err
		}

		statusf("Deleted %s.\n", id)
	}

	persistSession(client, logger)

	return nil
}

func runLs(_ *cobra.Command, _ []string) error {
	logger := buildLogger()
	ctx := context.Background()

	client, err := newSession(logger)
	if err != nil {
		return err
	}

	set, err := client.List(ctx, giniapi.ListOptions{Limit: flagLimit, Offset: flagOffset})
	if err != nil {
		return err
	}

	persistSession(client, logger)

	return printDocumentSet(set)
}

func runSearch(_ *cobra.Command, args []string) error {
	logger := buildLogger()
	ctx := context.Background()

	client, err := newSession(logger)
	if err != nil {
		return err
	}

	set, err := client.Search(ctx, args[0], giniapi.SearchOptions{
		DocType: flagDocType,
		Limit:   flagLimit,
		Offset:  flagOffset,
	})
	if err != nil {
		return err
	}

	persistSession(client, logger)

	return printDocumentSet(set)
}

// documentSetOutput is the JSON schema for `ls --json` and `search --json`.
type documentSetOutput struct {
	TotalCount int              `json:"total_count"`
	Documents  []documentOutput `json:"documents"`
}

func printDocumentSet(set *giniapi.DocumentSet) error {
	if flagJSON {
		out := documentSetOutput{TotalCount: set.TotalCount}
		for _, doc := range set.Documents {
			out.Documents = append(out.Documents, documentOutput{
				ID:       doc.ID,
				Progress: string(doc.Progress),
				Links:    doc.Links,
				Extra:    doc.Extra,
			})
		}

		return printJSON(out)
	}

	rows := make([][]string, 0, len(set.Documents))
	for _, doc := range set.Documents {
		rows = append(rows, []string{doc.ID, string(doc.Progress)})
	}

	printTable(os.Stdout, []string{"ID", "PROGRESS"}, rows)
	statusf("%d of %d documents shown.\n", len(set.Documents), set.TotalCount)

	return nil
}
