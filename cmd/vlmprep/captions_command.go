package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"vlmprep/internal/captions"
	"vlmprep/internal/logging"
	"vlmprep/internal/services/vlm"
	"vlmprep/internal/stageexec"
)

func newGenerateCaptionsCommand(ctx *commandContext) *cobra.Command {
	var inputDir string
	var outputFile string
	var model string
	var maxLength int
	var numBeams int
	var backend string
	var baseURL string
	var device string
	var itemTimeout int

	cmd := &cobra.Command{
		Use:   "generate-captions",
		Short: "Caption every image in a directory and write a JSON mapping",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.stageConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("model") {
				cfg.Captions.Model = model
			}
			if flags.Changed("max_length") {
				cfg.Captions.MaxLength = maxLength
			}
			if flags.Changed("num_beams") {
				cfg.Captions.NumBeams = numBeams
			}
			if flags.Changed("backend") {
				cfg.Captions.Backend = backend
			}
			if flags.Changed("base_url") {
				cfg.Captions.BaseURL = baseURL
			}
			if flags.Changed("device") {
				cfg.Captions.Device = device
			}
			if flags.Changed("item_timeout") {
				cfg.Captions.ItemTimeoutSeconds = itemTimeout
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, closer, err := ctx.newLogger(cmd, cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			annotator := captions.NewAnnotator(logger)
			defer annotator.Close()

			progress := newCaptionProgress(cmd.ErrOrStderr())
			defer progress.finish()

			var result captions.Result
			run := stageRun{name: "captions", input: inputDir, output: outputFile, lockDir: filepath.Dir(outputFile)}
			_, err = ctx.runStage(cmd, cfg, logger, run, func(stageCtx context.Context, stageLogger *slog.Logger) (stageexec.Summary, error) {
				annotator.SetLogger(stageLogger)
				modelCfg := cfg.CaptionModel()
				if err := annotator.Load(stageCtx, func(loadCtx context.Context) (captions.Captioner, error) {
					return vlm.Load(loadCtx, modelCfg, stageLogger)
				}); err != nil {
					return stageexec.Summary{}, err
				}
				_, res, err := annotator.Run(stageCtx, captions.Options{
					InputDir:    inputDir,
					OutputFile:  outputFile,
					Extensions:  cfg.Captions.Extensions,
					ItemTimeout: time.Duration(cfg.Captions.ItemTimeoutSeconds) * time.Second,
					OnProgress:  progress.update,
				})
				result = res
				return stageexec.Summary{
					Processed: res.Captioned,
					Skipped:   res.Skipped,
					Attrs: []logging.Attr{
						logging.Int("images", res.Total),
						logging.String("model", modelCfg.Model),
					},
				}, err
			})
			progress.finish()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Captioned %s of %s into %s\n",
				formatCount(result.Captioned), pluralize(result.Total, "image"), outputFile)
			printSkipped(out, result.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&inputDir, "input_dir", "", "Directory of images to caption")
	cmd.Flags().StringVar(&outputFile, "output_file", "", "JSON file receiving the filename to caption mapping")
	cmd.Flags().StringVar(&model, "model", "", "Caption model identifier (default from config)")
	cmd.Flags().IntVar(&maxLength, "max_length", 50, "Maximum caption length in tokens")
	cmd.Flags().IntVar(&numBeams, "num_beams", 5, "Beam search width")
	cmd.Flags().StringVar(&backend, "backend", "", "Model backend: hf or ollama (default from config)")
	cmd.Flags().StringVar(&baseURL, "base_url", "", "Model endpoint; unset uses the hosted API for hf and OLLAMA_HOST for ollama")
	cmd.Flags().StringVar(&device, "device", "", "Execution device: auto, cuda, mps or cpu (default from config)")
	cmd.Flags().IntVar(&itemTimeout, "item_timeout", 0, "Per-image caption timeout in seconds; 0 disables (default from config)")
	_ = cmd.MarkFlagRequired("input_dir")
	_ = cmd.MarkFlagRequired("output_file")
	return cmd
}

// captionProgress draws a progress bar when stderr is a terminal.
type captionProgress struct {
	w   io.Writer
	tty bool
	bar *progressbar.ProgressBar
}

func newCaptionProgress(w io.Writer) *captionProgress {
	return &captionProgress{w: w, tty: logging.IsTerminal(w)}
}

func (p *captionProgress) update(done, total int) {
	if !p.tty {
		return
	}
	if p.bar == nil {
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription("captioning"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionClearOnFinish(),
		)
	}
	_ = p.bar.Set(done)
}

func (p *captionProgress) finish() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	p.bar = nil
}
