package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"vlmprep/internal/normalize"
	"vlmprep/internal/stageexec"
)

func newNormalizeImagesCommand(ctx *commandContext) *cobra.Command {
	var inputDir string
	var outputDir string
	var resolution int
	var keepGoing bool

	cmd := &cobra.Command{
		Use:   "normalize-images",
		Short: "Resize images to square RGB files of a fixed resolution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.stageConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("resolution") {
				cfg.Normalize.Resolution = resolution
			}
			if keepGoing {
				cfg.Normalize.OnError = string(normalize.PolicySkip)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			policy, err := normalize.ParsePolicy(cfg.Normalize.OnError)
			if err != nil {
				return err
			}

			logger, closer, err := ctx.newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			normalizer := normalize.NewNormalizer(logger)
			var result normalize.Result
			run := stageRun{name: "normalize", input: inputDir, output: outputDir, lockDir: outputDir}
			_, err = ctx.runStage(cmd, cfg, logger, run, func(stageCtx context.Context, stageLogger *slog.Logger) (stageexec.Summary, error) {
				normalizer.SetLogger(stageLogger)
				res, err := normalizer.Normalize(stageCtx, normalize.Options{
					InputDir:    inputDir,
					OutputDir:   outputDir,
					Resolution:  cfg.Normalize.Resolution,
					Extensions:  cfg.Normalize.Extensions,
					Policy:      policy,
					JPEGQuality: cfg.Normalize.JPEGQuality,
				})
				result = res
				return stageexec.Summary{Processed: len(res.Processed), Skipped: res.Skipped}, err
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Normalized %s to %dx%d in %s (%s)\n",
				pluralize(len(result.Processed), "image"), cfg.Normalize.Resolution, cfg.Normalize.Resolution,
				outputDir, formatBytes(totalSize(outputDir, result.Processed)))
			printSkipped(out, result.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&inputDir, "input_dir", "", "Directory of source images")
	cmd.Flags().StringVar(&outputDir, "output_dir", "", "Directory receiving normalized images")
	cmd.Flags().IntVar(&resolution, "resolution", 512, "Output width and height in pixels")
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Skip images that fail instead of aborting the batch")
	_ = cmd.MarkFlagRequired("input_dir")
	_ = cmd.MarkFlagRequired("output_dir")
	return cmd
}
