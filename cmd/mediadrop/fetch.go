package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/memohai/mediadrop/cmd/mediadrop/modules"
	"github.com/memohai/mediadrop/internal/delivery"
	"github.com/memohai/mediadrop/internal/logger"
	"github.com/memohai/mediadrop/internal/media"
)

type fetchOptions struct {
	audio  bool
	output string
}

func newFetchCmd(root *rootOptions) *cobra.Command {
	opts := &fetchOptions{}
	cmd := &cobra.Command{
		Use:   "fetch LINK",
		Short: "Download a single video or audio track",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			kind := media.Video
			if opts.audio {
				kind = media.Audio
			}
			pipeline := modules.NewFetchPipeline(logger.L, cfg)
			return fetch(ctx, pipeline, args[0], kind, opts.output, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&opts.audio, "audio", false, "download the audio track only")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write to `FILE` (\"-\" for stdout, default is the media title)")
	return cmd
}

func fetch(ctx context.Context, pipeline *delivery.Pipeline, link string, kind media.Kind, output string, stdout io.Writer) error {
	h, err := pipeline.Acquire(ctx, link, kind)
	if err != nil {
		logger.L.Debug("fetch failed", slog.String("link", link), slog.Any("error", err))
		return errors.New(delivery.MessageFor(err, kind))
	}
	defer h.Close()

	name := h.TakeFilename()
	if output == "-" {
		if _, err := io.Copy(stdout, h); err != nil {
			return fmt.Errorf("download failed: %w", err)
		}
		return nil
	}
	if output != "" {
		name = output
	}

	f, err := os.Create(name)
	if err != nil {
		return err
	}
	bar := progressbar.DefaultBytes(h.Size, "downloading")
	n, err := io.Copy(io.MultiWriter(f, bar), h)
	if err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return fmt.Errorf("download failed: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.L.Info("download complete", slog.String("file", name), slog.Int64("bytes", n))
	return nil
}
