// Command pdfaudio converts PDF documents to speech through the conversion
// backend: it lists voices, runs the extract and synthesize pipeline, and
// checks the environment.
package main

import (
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
