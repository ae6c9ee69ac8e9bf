package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"vlmprep/internal/frames"
	"vlmprep/internal/logging"
	"vlmprep/internal/stageexec"
)

func newExtractFramesCommand(ctx *commandContext) *cobra.Command {
	var videoPath string
	var outputDir string
	var interval int
	var clean bool

	cmd := &cobra.Command{
		Use:   "extract-frames",
		Short: "Sample every Nth frame of a video into JPEG files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.stageConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				cfg.Frames.Interval = interval
			}
			if cmd.Flags().Changed("clean") {
				cfg.Frames.CleanStale = clean
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, closer, err := ctx.newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			extractor := frames.NewExtractor(cfg, logger)
			var result frames.Result
			run := stageRun{name: "frames", input: videoPath, output: outputDir, lockDir: outputDir}
			_, err = ctx.runStage(cmd, cfg, logger, run, func(stageCtx context.Context, stageLogger *slog.Logger) (stageexec.Summary, error) {
				extractor.SetLogger(stageLogger)
				res, err := extractor.Extract(stageCtx, frames.Options{
					VideoPath:   videoPath,
					OutputDir:   outputDir,
					Interval:    cfg.Frames.Interval,
					Clean:       cfg.Frames.CleanStale,
					JPEGQuality: cfg.Frames.JPEGQuality,
				})
				result = res
				return stageexec.Summary{
					Processed: res.Written,
					Attrs: []logging.Attr{
						logging.Int("decoded", res.Decoded),
						logging.Int("removed_stale", res.Removed),
						logging.Bool("truncated", res.Truncated),
					},
				}, err
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Extracted %s from %s decoded frames into %s (%s)\n",
				pluralize(result.Written, "frame"), formatCount(result.Decoded), outputDir,
				formatBytes(totalSize(outputDir, result.Files)))
			if result.Removed > 0 {
				fmt.Fprintf(out, "Removed %s from an earlier run\n", pluralize(result.Removed, "stale frame"))
			}
			if result.Truncated {
				fmt.Fprintf(out, "Warning: decoding stopped early (%v); later frames are missing\n", result.DecodeErr)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&videoPath, "video_path", "", "Video file to sample")
	cmd.Flags().StringVar(&outputDir, "output_dir", "", "Directory receiving frame_<n>.jpg files")
	cmd.Flags().IntVar(&interval, "interval", 30, "Keep every Nth decoded frame")
	cmd.Flags().BoolVar(&clean, "clean", true, "Remove frame_<n>.jpg files from earlier runs first")
	_ = cmd.MarkFlagRequired("video_path")
	_ = cmd.MarkFlagRequired("output_dir")
	return cmd
}
