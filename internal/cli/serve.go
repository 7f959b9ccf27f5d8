package cli

import (
	"log"

	"github.com/spf13/cobra"

	"ortholabel/internal/app"
	"ortholabel/internal/labelstore"
	"ortholabel/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the labeling HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.Server.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		svc.On(app.EventSegmented, func(data interface{}) {
			res := data.(*app.SegmentResult)
			log.Printf("segmented %s: %d regions", res.ImageID, res.RegionCount)
		})
		svc.On(app.EventLabelSaved, func(data interface{}) {
			rec := data.(labelstore.Record)
			log.Printf("labeled %s as %q", rec.PatchPath, rec.Label)
		})

		return server.New(svc).ListenAndServe(cmd.Context(), addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
