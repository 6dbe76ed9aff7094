package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/audio-scribe/backend/internal/youtube"
)

// downloadCmd downloads the audio of a video
var downloadCmd = &cobra.Command{
	Use:   "download [URL_OR_VIDEO_ID]",
	Short: "Download the audio of a YouTube video",
	Long:  `Download the audio track into the media store and record it in the registry. Cached audio is not downloaded again.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()

		source := args[0]
		if _, ok := youtube.ExtractVideoID(source); !ok {
			// Accept a bare video id
			source = youtube.WatchURL(source)
		}

		res, err := a.downloader.EnsureAudio(context.Background(), source)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "    ")
		return enc.Encode(map[string]interface{}{
			"record": res.Record,
			"path":   res.AudioPath,
			"cached": res.Cached,
		})
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
}
