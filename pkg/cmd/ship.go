package cmd

import (
	"context"
	"syscall"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yhsiang/seqfile/pkg/seqfile"
	"github.com/yhsiang/seqfile/pkg/shipper"
	"github.com/yhsiang/seqfile/pkg/util"
)

var (
	shipCmd = &cobra.Command{
		Use:   "ship",
		Short: "send queued files to a seqfile server",
		Long: `ship drains the queue to a seqfile server, removing every file the server
acknowledges. With --inbox it also ingests files dropped into the inbox
directory, in the same process and on the same queue.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetString("url"); cmd.Flags().Changed("url") {
				cfg.Client.URL = v
			}
			withInbox, _ := cmd.Flags().GetBool("inbox")

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			q, err := openQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			client := shipper.NewSyncClient(cfg.Client.URL, q, shipper.ClientOptions{
				AckTimeout:    cfg.Client.AckTimeout,
				PollInterval:  cfg.Client.PollInterval,
				AllExtensions: cfg.Client.AllExtensions,
			})
			client.OnShipped(func(fileNum int) {
				log.Infof("shipped %d, %d left", fileNum, q.QueueLen())
			})
			client.OnRejected(func(fileNum int, reason string) {
				log.Warnf("file %d set aside: %s", fileNum, reason)
			})

			if withInbox {
				if err := startInbox(ctx); err != nil {
					return err
				}
			}

			go func() {
				util.WaitSignals(ctx, syscall.SIGINT, syscall.SIGTERM)
				cancel()
			}()

			return client.Run(ctx)
		},
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "move files dropped into the inbox into the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			q, err := openQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			watcher := newInboxWatcher(ctx, q)
			go func() {
				util.WaitSignals(ctx, syscall.SIGINT, syscall.SIGTERM)
				cancel()
			}()

			return watcher.Run()
		},
	}
)

func newInboxWatcher(ctx context.Context, q *seqfile.SequentialFile) *shipper.InboxWatcher {
	watcher := shipper.NewInboxWatcher(ctx, cfg.Inbox.Dir, q, cfg.Inbox.PollInterval)
	watcher.OnIngest(func(fileNum int, name string) {
		log.Infof("queued %s as %d", name, fileNum)
	})
	return watcher
}

// startInbox runs an inbox watcher on the queue the registry already holds
// for this process.
func startInbox(ctx context.Context) error {
	q, ok := registry.Lookup(cfg.Queue.Dir)
	if !ok {
		return errors.Errorf("queue %s is not open", cfg.Queue.Dir)
	}

	watcher := newInboxWatcher(ctx, q)
	go func() {
		if err := watcher.Run(); err != nil {
			log.WithError(err).Error("inbox watcher stopped")
		}
	}()
	return nil
}

func init() {
	shipCmd.Flags().String("url", "", "server websocket url (overrides client.url)")
	shipCmd.Flags().Bool("inbox", false, "also ingest files from the inbox directory")
	watchCmd.Flags().String("inbox-dir", "", "inbox directory (overrides inbox.dir)")
	watchCmd.PreRun = func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetString("inbox-dir"); cmd.Flags().Changed("inbox-dir") {
			cfg.Inbox.Dir = v
		}
	}
	rootCmd.AddCommand(shipCmd, watchCmd)
}
