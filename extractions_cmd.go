package main

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/docproc/gini-go/pkg/giniapi"
)

// Extraction flags, bound in the command builders below.
var (
	flagIncubator    bool
	flagLayoutFormat string
	flagSummary      string
	flagDescription  string
)

func newExtractionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extractions <document-id>",
		Short: "Display a document's extraction results",
		Args:  cobra.ExactArgs(1),
		RunE:  runExtractions,
	}

	cmd.Flags().BoolVar(&flagIncubator, "incubator", false, "use the experimental extraction surface")

	return cmd
}

func newFeedbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feedback <document-id> <label> <value>",
		Short: "Submit a corrected value for an extraction label",
		Args:  cobra.ExactArgs(3),
		RunE:  runFeedback,
	}
}

func newLayoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout <document-id>",
		Short: "Print a document's layout",
		Args:  cobra.ExactArgs(1),
		RunE:  runLayout,
	}

	cmd.Flags().StringVar(&flagLayoutFormat, "format", "json", "layout representation (json, xml)")

	return cmd
}

func newProcessedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "processed <document-id> [output-file]",
		Short: "Download the processed (deskewed, rotated) document",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runProcessed,
	}
}

func newReportErrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report-error <document-id>",
		Short: "Report a processing problem with a document to the API team",
		Args:  cobra.ExactArgs(1),
		RunE:  runReportError,
	}

	cmd.Flags().StringVar(&flagSummary, "summary", "", "short problem summary")
	cmd.Flags().StringVar(&flagDescription, "description", "", "detailed problem description")

	return cmd
}

// fetchDocument is the shared session + Get preamble of the per-document
// commands.
func fetchDocument(ctx context.Context, id string) (*giniapi.Document, error) {
	logger := buildLogger()

	client, err := newSession(logger)
	if err != nil {
		return nil, err
	}

	doc, err := client.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	persistSession(client, logger)

	return doc, nil
}

// extractionOutput is the JSON schema for `extractions --json`.
type extractionOutput struct {
	Label      string         `json:"label"`
	Value      any            `json:"value"`
	Entity     string         `json:"entity,omitempty"`
	Box        map[string]any `json:"box,omitempty"`
	Candidates string         `json:"candidates,omitempty"`
}

func runExtractions(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	doc, err := fetchDocument(ctx, args[0])
	if err != nil {
		return err
	}

	ext, err := doc.Extractions(ctx, giniapi.ExtractionsOptions{Incubator: flagIncubator})
	if err != nil {
		return err
	}

	labels := make([]string, 0, len(ext.Labels))
	for label := range ext.Labels {
		labels = append(labels, label)
	}

	sort.Strings(labels)

	if flagJSON {
		out := make([]extractionOutput, 0, len(labels))
		for _, label := range labels {
			e := ext.Labels[label]
			out = append(out, extractionOutput{
				Label:      label,
				Value:      e.Value,
				Entity:     e.Entity,
				Box:        e.Box,
				Candidates: e.Candidates,
			})
		}

		return printJSON(out)
	}

	rows := make([][]string, 0, len(labels))
	for _, label := range labels {
		e := ext.Labels[label]
		rows = append(rows, []string{label, fmt.Sprint(e.Value), e.Entity})
	}

	printTable(os.Stdout, []string{"LABEL", "VALUE", "ENTITY"}, rows)

	return nil
}

func runFeedback(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	doc, err := fetchDocument(ctx, args[0])
	if err != nil {
		return err
	}

	ext, err := doc.Extractions(ctx, giniapi.ExtractionsOptions{})
	if err != nil {
		return err
	}

	if err := ext.SubmitFeedback(ctx, args[1], giniapi.Feedback{Value: args[2]}); err != nil {
		return err
	}

	statusf("Feedback for %q submitted.\n", args[1])

	return nil
}

func runLayout(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	doc, err := fetchDocument(ctx, args[0])
	if err != nil {
		return err
	}

	var body []byte

	switch flagLayoutFormat {
	case "json":
		body, err = doc.Layout().JSON(ctx)
	case "xml":
		body, err = doc.Layout().XML(ctx)
	default:
		return fmt.Errorf("unknown layout format %q (json, xml)", flagLayoutFormat)
	}

	if err != nil {
		return err
	}

	_, err = os.Stdout.Write(body)

	return err
}

func runProcessed(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	doc, err := fetchDocument(ctx, args[0])
	if err != nil {
		return err
	}

	data, err := doc.Processed(ctx)
	if err != nil {
		return err
	}

	if len(args) < 2 {
		_, err = os.Stdout.Write(data)

		return err
	}

	if err := os.WriteFile(args[1], data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", args[1], err)
	}

	statusf("Wrote %s (%d bytes).\n", args[1], len(data))

	return nil
}

func runReportError(_ *cobra.Command, args []string) error {
	ctx := context.Background()

	doc, err := fetchDocument(ctx, args[0])
	if err != nil {
		return err
	}

	errorID, err := doc.ReportError(ctx, flagSummary, flagDescription)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(map[string]string{"error_id": errorID})
	}

	fmt.Printf("Error report filed: %s\n", errorID)

	return nil
}
