package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// registryCmd groups registry commands
var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Inspect the download registry",
}

// registryListCmd lists registered downloads
var registryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloaded videos",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.registry.List(context.Background())
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No downloads registered.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "VIDEO ID\tDURATION\tAUDIO\tTITLE")
		for _, rec := range records {
			audio := "missing"
			if a.store.HasAudio(rec.ID) {
				audio = "ok"
			}
			fmt.Fprintf(w, "%s\t%.0fs\t%s\t%s\n", rec.ID, rec.Duration, audio, rec.Title)
		}
		return w.Flush()
	},
}

func init() {
	registryCmd.AddCommand(registryListCmd)
	rootCmd.AddCommand(registryCmd)
}
