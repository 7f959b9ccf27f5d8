package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"ortholabel/internal/app"
)

var (
	segNSegments   int
	segCompactness float64
	segQuiet       bool
)

var segmentCmd = &cobra.Command{
	Use:   "segment <image>",
	Short: "Upload a local image and segment it",
	Long: `Copies the image into the workspace, runs superpixel segmentation,
vectorizes every region and prints the segmentation payload as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		up, err := svc.Upload(filepath.Base(args[0]), f)
		f.Close()
		if err != nil {
			return err
		}

		var bar *progressbar.ProgressBar
		req := app.SegmentRequest{
			ImageFilename: up.Filename,
			NSegments:     segNSegments,
			Compactness:   segCompactness,
		}
		if !segQuiet {
			req.Progress = func(done, total int) {
				if bar == nil {
					bar = progressbar.NewOptions(total,
						progressbar.OptionSetDescription("Vectorizing regions"),
						progressbar.OptionSetWriter(os.Stderr),
						progressbar.OptionShowCount(),
					)
				}
				bar.Set(done)
			}
		}

		res, err := svc.Segment(cmd.Context(), req)
		if bar != nil {
			bar.Finish()
			fmt.Fprintln(os.Stderr)
		}
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	segmentCmd.Flags().IntVarP(&segNSegments, "segments", "n", 0, "target number of superpixels (default from config)")
	segmentCmd.Flags().Float64VarP(&segCompactness, "compactness", "c", 0, "SLIC compactness (default from config)")
	segmentCmd.Flags().BoolVarP(&segQuiet, "quiet", "q", false, "disable the progress bar")
	rootCmd.AddCommand(segmentCmd)
}
