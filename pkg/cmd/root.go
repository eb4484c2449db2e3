package cmd

import (
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yhsiang/seqfile/pkg/config"
	"github.com/yhsiang/seqfile/pkg/filelock"
	"github.com/yhsiang/seqfile/pkg/seqfile"
)

var (
	configPath string
	cfg        *config.Config

	// registry hands the same queue to every component of one process
	registry = seqfile.NewRegistry()

	rootCmd = &cobra.Command{
		Use:   "seqfile",
		Short: "seqfile manages a directory of numbered files as a queue",
		Long: `seqfile keeps a directory of uniquely numbered files as a durable FIFO queue.
Files can be pushed, popped and inspected from the shell, shipped to a
remote seqfile server, or ingested from an inbox directory.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd)
			return setupLogging(cfg.LogLevel)
		},
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", config.DefaultPath, "config file")
	flags.StringP("dir", "d", "", "queue directory (overrides queue.dir)")
	flags.String("ext", "", "filename extension (overrides queue.extension)")
	flags.String("pattern", "", "file number pattern (overrides queue.pattern)")
	flags.String("log-level", "", "debug, info, warn or error")

	color.NoColor = !isatty.IsTerminal(os.Stdout.Fd())
}

func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if v, _ := flags.GetString("dir"); flags.Changed("dir") {
		cfg.Queue.Dir = v
	}
	if v, _ := flags.GetString("ext"); flags.Changed("ext") {
		cfg.Queue.Extension = v
	}
	if v, _ := flags.GetString("pattern"); flags.Changed("pattern") {
		cfg.Queue.Pattern = v
	}
	if v, _ := flags.GetString("log-level"); flags.Changed("log-level") {
		cfg.LogLevel = v
	}
}

func setupLogging(level string) error {
	log.SetHandler(cli.New(os.Stderr))

	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level %q", level)
	}
	log.SetLevel(lvl)
	return nil
}

// openQueue returns the configured queue from the process registry.
func openQueue() (*seqfile.SequentialFile, error) {
	registry.Defaults = *cfg.Queue.QueueOptions()
	return registry.GetOrCreate(cfg.Queue.Dir, cfg.Queue.Extension)
}

// withLockedQueue runs fn while holding the queue directory's lock file, so
// that two seqfile processes never renumber the same directory at once.
func withLockedQueue(fn func(q *seqfile.SequentialFile) error) error {
	q, err := openQueue()
	if err != nil {
		return err
	}
	defer q.Close()

	lock := filelock.ForDir(q.Dir())
	if err := lock.Lock(); err != nil {
		return err
	}
	defer lock.Unlock()

	return fn(q)
}

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}
