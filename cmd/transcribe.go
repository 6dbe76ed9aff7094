package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// transcribeCmd transcribes downloaded audio in the foreground
var transcribeCmd = &cobra.Command{
	Use:   "transcribe [VIDEO_ID]",
	Short: "Transcribe downloaded audio",
	Long: `Transcribe the stored audio of a video with whisper and write the artifact the
server returns for the same video and model. An existing artifact is reused.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		model, _ := cmd.Flags().GetString("model")
		printJSON, _ := cmd.Flags().GetBool("json")

		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		videoID := args[0]
		tr, err := a.transcriber.Run(context.Background(), videoID, model)
		if err != nil {
			return err
		}

		if printJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "    ")
			return enc.Encode(tr)
		}

		if model == "" {
			model = a.cfg.DefaultModel
		}
		fmt.Printf("Transcription written: %s\n", a.store.TranscriptionPath(videoID, model))
		fmt.Printf("Segments: %d\n", len(tr.Segments))
		return nil
	},
}

func init() {
	transcribeCmd.Flags().StringP("model", "m", "", "Whisper model (default from config)")
	transcribeCmd.Flags().Bool("json", false, "Print the transcription as JSON")
	rootCmd.AddCommand(transcribeCmd)
}
