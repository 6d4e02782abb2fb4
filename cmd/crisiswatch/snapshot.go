package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/abelbrown/crisiswatch/internal/view"
)

var (
	snapshotPretty bool
	snapshotWidth  int
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Build one live document and print it",
	Long:  `Run the full pipeline once and print the document as JSON, or as a terminal summary with --pretty.`,
	RunE:  runSnapshot,
}

func init() {
	snapshotCmd.Flags().BoolVar(&snapshotPretty, "pretty", false, "print a terminal summary instead of JSON")
	snapshotCmd.Flags().IntVar(&snapshotWidth, "width", 100, "summary width")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	rt, err := newRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
	defer cancel()
	doc := rt.builder.Build(ctx)

	if snapshotPretty {
		fmt.Fprint(os.Stdout, view.Render(doc, view.DefaultStyles(), snapshotWidth))
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
