package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pdf-audio/internal/domain"
	"pdf-audio/internal/gateway"
	"pdf-audio/internal/pipeline"
)

type convertOptions struct {
	pdfPath  string
	voiceID  string
	audioOut string
	textOut  string
	play     bool
}

func (c *cli) newConvertCommand() *cobra.Command {
	var opts convertOptions

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Extract the text of a PDF and synthesize it to MP3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runConvert(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.pdfPath, "pdf", "", "PDF file to convert")
	flags.StringVar(&opts.voiceID, "voice", "", "voice id (default: preferred voice from settings)")
	flags.StringVar(&opts.audioOut, "audio-out", "", "where to save the MP3 (default: download dir)")
	flags.StringVar(&opts.textOut, "text-out", "", "optional file for the extracted text")
	flags.BoolVar(&opts.play, "play", false, "play the audio after saving it")
	_ = cmd.MarkFlagRequired("pdf")
	return cmd
}

// runConvert drives one pipeline from file selection to saved audio.
func (c *cli) runConvert(cmd *cobra.Command, opts convertOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	machine := pipeline.New(c.client, pipeline.Config{
		TargetLanguage: c.settings.TargetLanguage,
		PreferredVoice: c.settings.PreferredVoice,
		OCRLanguage:    c.settings.OCRLanguage,
	}, pipeline.WithLogger(c.logger))

	if err := pipeline.Failure(machine.LoadVoices(ctx)); err != nil {
		return err
	}
	if opts.voiceID != "" {
		if err := pipeline.Failure(machine.SelectVoice(opts.voiceID)); err != nil {
			return fmt.Errorf("voice %s: %w", opts.voiceID, err)
		}
	}

	path := strings.TrimSpace(opts.pdfPath)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	if err := pipeline.Failure(machine.SelectFile(&domain.InputFile{Name: filepath.Base(path), Path: path})); err != nil {
		return err
	}

	fmt.Fprintf(out, "Extrayendo texto de %s...\n", filepath.Base(path))
	state := machine.Extract(ctx)
	if err := pipeline.Failure(state); err != nil {
		return err
	}
	fmt.Fprintf(out, "Texto extraído: %d caracteres.\n", len([]rune(state.ExtractedText)))

	if opts.textOut != "" {
		if err := os.WriteFile(opts.textOut, []byte(state.ExtractedText), 0o644); err != nil {
			return fmt.Errorf("write text: %w", err)
		}
		fmt.Fprintf(out, "Texto guardado en %s\n", opts.textOut)
	}

	fmt.Fprintf(out, "Generando audio con %s...\n", state.SelectedVoiceID)
	state = machine.Synthesize(ctx)
	if err := pipeline.Failure(state); err != nil {
		return err
	}

	dest := opts.audioOut
	if dest == "" {
		dest = filepath.Join(c.settings.DownloadDir, gateway.AudioFileName(state.AudioReference))
	}
	if _, err := c.client.DownloadAudioToFile(ctx, state.AudioReference, dest); err != nil {
		return err
	}
	fmt.Fprintf(out, "Audio guardado en %s\n", dest)

	if !opts.play {
		return nil
	}
	f, err := os.Open(dest)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	return c.newPlayer().Play(ctx, f)
}
