package cmd

import (
	"context"
	"net/http"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/spf13/cobra"

	"github.com/yhsiang/seqfile/pkg/shipper"
	"github.com/yhsiang/seqfile/pkg/util"
)

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "receive shipped files into a spool queue",
		Long: `serve accepts files over websocket (/ws) or multipart upload (/upload),
stores each one in the spool queue under a new number and serves spooled
files back at /files/{num}.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetString("addr"); cmd.Flags().Changed("addr") {
				cfg.Server.Addr = v
			}
			if v, _ := cmd.Flags().GetString("spool"); cmd.Flags().Changed("spool") {
				cfg.Server.SpoolDir = v
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			registry.Defaults = *cfg.Queue.QueueOptions()
			spool, err := registry.GetOrCreate(cfg.Server.SpoolDir, cfg.Queue.Extension)
			if err != nil {
				return err
			}
			defer spool.Close()

			if !spool.ScanDir() {
				log.Warnf("spool %s could not be scanned", spool.Dir())
			}

			server := shipper.NewServer(ctx, cfg.Server.Addr, spool, cfg.Server.MaxUploadSize)

			errC := make(chan error, 1)
			go func() {
				log.Infof("server listen on %s, spooling to %s", cfg.Server.Addr, spool.Dir())
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errC <- err
				}
				close(errC)
			}()

			go func() {
				util.WaitSignals(ctx, syscall.SIGINT, syscall.SIGTERM)
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer shutdownCancel()
				server.Shutdown(shutdownCtx)
			}()

			return <-errC
		},
	}
)

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	serveCmd.Flags().String("spool", "", "spool directory (overrides server.spool_dir)")
	rootCmd.AddCommand(serveCmd)
}
