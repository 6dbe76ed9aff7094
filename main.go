package main

import "github.com/audio-scribe/backend/cmd"

func main() {
	cmd.Execute()
}
