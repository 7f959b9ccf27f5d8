package cli

import (
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"ortholabel/internal/app"
)

var labelUser string

var labelCmd = &cobra.Command{
	Use:   "label <image_id> <region_id> <label>",
	Short: "Assign a label to a region (\"unlabeled\" removes it)",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		regionID, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid region id %q", args[1])
		}
		res, err := svc.SaveLabel(cmd.Context(), app.LabelRequest{
			ImageID:  args[0],
			RegionID: regionID,
			Label:    args[2],
			User:     labelUser,
		})
		if err != nil {
			return err
		}
		if res.PatchPath != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", res.Status, res.PatchPath)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), res.Status)
		}
		return nil
	},
}

var labelsCmd = &cobra.Command{
	Use:   "labels <image_id>",
	Short: "List the labeled regions of an image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := svc.Labels(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(doc) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No labels found.")
			return nil
		}

		ids := make([]int, 0, len(doc))
		for k := range doc {
			if id, err := strconv.Atoi(k); err == nil {
				ids = append(ids, id)
			}
		}
		sort.Ints(ids)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "REGION\tLABEL\tBBOX\tSIZE\tUSER\tLABELED")
		fmt.Fprintln(w, "------\t-----\t----\t----\t----\t-------")
		for _, id := range ids {
			rec := doc[strconv.Itoa(id)]
			b := rec.BBox
			fmt.Fprintf(w, "%d\t%s\t%d,%d,%d,%d\t%dx%d\t%s\t%s\n", id, rec.Label,
				b.XMin, b.YMin, b.XMax, b.YMax, b.Width(), b.Height(), rec.User,
				time.Unix(rec.TS, 0).Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	labelCmd.Flags().StringVarP(&labelUser, "user", "u", "", "user recorded with the label (default from config)")
	rootCmd.AddCommand(labelCmd)
	rootCmd.AddCommand(labelsCmd)
}
