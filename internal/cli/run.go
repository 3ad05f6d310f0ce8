package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/promptcut/promptcut/internal/pipeline"
	"github.com/promptcut/promptcut/internal/usecase"
)

func newEditCmd(log zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <prompt>",
		Short: "Search indexed videos and apply an edit described in plain language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir, _ := cmd.Flags().GetString("out")
			outputName, _ := cmd.Flags().GetString("output")
			uploads, _ := cmd.Flags().GetStringArray("upload")
			yes, _ := cmd.Flags().GetBool("yes")
			tempDir, _ := cmd.Flags().GetString("temp")

			apiKey := os.Getenv("TL_API_KEY")
			if apiKey == "" {
				return errors.New("TL_API_KEY is required (set it in .env)")
			}
			indexID := os.Getenv("TL_INDEX_ID")
			if indexID == "" {
				return errors.New("TL_INDEX_ID is required (set it in .env)")
			}
			geminiKey := os.Getenv("GEMINI_API_KEY")
			if geminiKey == "" {
				return errors.New("GEMINI_API_KEY is required (set it in .env)")
			}

			absUploads, err := absAll(uploads)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Hour)
			defer cancel()

			cfg := pipeline.Config{
				Prompt:     args[0],
				Uploads:    absUploads,
				OutDir:     outDir,
				OutputName: outputName,
				TempDir:    tempDir,

				FFmpegPath:  "ffmpeg",
				FFprobePath: "ffprobe",

				TwelveLabsAPIKey:       apiKey,
				TwelveLabsIndexID:      indexID,
				TwelveLabsBaseURL:      os.Getenv("TL_BASE_URL"),
				TwelveLabsAllowedHosts: splitHosts(os.Getenv("TL_ALLOWED_HOSTS")),

				GeminiAPIKey: geminiKey,
				GeminiModel:  os.Getenv("GEMINI_MODEL"),

				DBPath: os.Getenv("PROMPTCUT_DB"),

				Log: log,
			}
			if !yes {
				cfg.Confirm = confirmPlan(cmd)
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}

			res, err := pipeline.Run(ctx, cfg)
			if errors.Is(err, usecase.ErrAborted) {
				fmt.Fprintln(cmd.OutOrStdout(), "aborted; nothing was rendered")
				return nil
			}
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		},
	}

	cmd.Flags().String("out", "out", "Output directory")
	cmd.Flags().String("output", "", "Output file name (generated when empty)")
	cmd.Flags().StringArray("upload", nil, "Video to index before searching (repeatable)")
	cmd.Flags().Bool("yes", false, "Apply the generated plan without asking")
	cmd.Flags().String("temp", "", "Directory for intermediate files")
	return cmd
}

func newRenderCmd(log zerolog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <plan.json> <input>",
		Short: "Render an edit plan file against a local video",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			tempDir, _ := cmd.Flags().GetString("temp")

			absIn, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Hour)
			defer cancel()

			cfg := pipeline.RenderConfig{
				PlanPath:    args[0],
				InputPath:   absIn,
				OutputPath:  output,
				TempDir:     tempDir,
				FFmpegPath:  "ffmpeg",
				FFprobePath: "ffprobe",
				Log:         log,
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}

			res, err := pipeline.RunRender(ctx, cfg)
			if err != nil {
				return err
			}
			printResult(cmd, res)
			return nil
		},
	}

	cmd.Flags().String("output", "", "Output file path (generated when empty)")
	cmd.Flags().String("temp", "", "Directory for intermediate files")
	return cmd
}

func newUploadCmd(log zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <video>...",
		Short: "Index local videos for semantic search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			apiKey := os.Getenv("TL_API_KEY")
			if apiKey == "" {
				return errors.New("TL_API_KEY is required (set it in .env)")
			}
			indexID := os.Getenv("TL_INDEX_ID")
			if indexID == "" {
				return errors.New("TL_INDEX_ID is required (set it in .env)")
			}

			absPaths, err := absAll(args)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Hour)
			defer cancel()

			cfg := pipeline.UploadConfig{
				Paths:                  absPaths,
				TwelveLabsAPIKey:       apiKey,
				TwelveLabsIndexID:      indexID,
				TwelveLabsBaseURL:      os.Getenv("TL_BASE_URL"),
				TwelveLabsAllowedHosts: splitHosts(os.Getenv("TL_ALLOWED_HOSTS")),
				DBPath:                 os.Getenv("PROMPTCUT_DB"),
				Log:                    log,
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("config: %w", err)
			}

			ids, err := pipeline.RunUpload(ctx, cfg)
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return err
		},
	}
}

func newVideosCmd(log zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "videos",
		Short: "List indexed videos and their original files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := pipeline.RunVideos(cmd.Context(), os.Getenv("PROMPTCUT_DB"), log)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no videos registered")
				return nil
			}
			for _, r := range recs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", r.VideoID, r.UploadedAt.Format(time.RFC3339), r.OriginalPath)
			}
			return nil
		},
	}
}

// confirmPlan shows the generated plan and reads a y/N answer from stdin.
func confirmPlan(cmd *cobra.Command) func(planJSON string, warnings []string) (bool, error) {
	return func(planJSON string, warnings []string) (bool, error) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Generated edit plan:")
		fmt.Fprintln(out, planJSON)
		for _, w := range warnings {
			fmt.Fprintln(out, "warning:", w)
		}
		fmt.Fprint(out, "Apply this plan? [y/N] ")

		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, err
		}
		ans := strings.ToLower(strings.TrimSpace(line))
		return ans == "y" || ans == "yes", nil
	}
}

func printResult(cmd *cobra.Command, res usecase.EditResult) {
	for _, w := range res.Warnings {
		fmt.Fprintln(cmd.OutOrStdout(), "warning:", w)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.OutputPath)
}

func splitHosts(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func absAll(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		out[i] = abs
	}
	return out, nil
}
