package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/yhsiang/seqfile/pkg/filelock"
	"github.com/yhsiang/seqfile/pkg/seqfile"
)

var (
	label = color.New(color.FgCyan)
	value = color.New(color.FgWhite, color.Bold)
	warn  = color.New(color.FgYellow)
)

var (
	pushCmd = &cobra.Command{
		Use:   "push <file|-> [file...]",
		Short: "copy files into the queue under new numbers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLockedQueue(func(q *seqfile.SequentialFile) error {
				for _, arg := range args {
					path, err := push(q, arg)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), path)
				}
				return nil
			})
		},
	}

	popCmd = &cobra.Command{
		Use:   "pop",
		Short: "take the oldest file off the queue",
		Long: `pop prints the path of the oldest queued file (or its content with --cat)
and removes the file unless --keep is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, _ := cmd.Flags().GetBool("cat")
			keep, _ := cmd.Flags().GetBool("keep")
			allExt, _ := cmd.Flags().GetBool("all-ext")

			return withLockedQueue(func(q *seqfile.SequentialFile) error {
				fileNum := q.Dequeue(true)
				if fileNum == seqfile.NoFile {
					return errors.New("queue is empty")
				}

				path, err := q.PathFor(fileNum)
				if err != nil {
					return err
				}

				if cat {
					if err := copyFile(cmd.OutOrStdout(), path); err != nil {
						return err
					}
				} else {
					fmt.Fprintln(cmd.OutOrStdout(), path)
				}

				if keep {
					return nil
				}
				return q.RemoveFileNum(fileNum, allExt)
			})
		},
	}

	peekCmd = &cobra.Command{
		Use:   "peek",
		Short: "print the path of the oldest queued file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := openQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			fileNum := q.Peek()
			if fileNum == seqfile.NoFile {
				return errors.New("queue is empty")
			}
			path, err := q.PathFor(fileNum)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	statCmd = &cobra.Command{
		Use:   "stat",
		Short: "show queue settings and length",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := openQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			var found int
			q.OnScan(func(count int) { found = count })
			if !q.ScanDir() {
				return errors.Errorf("cannot scan %s", q.Dir())
			}

			out := cmd.OutOrStdout()
			line := func(k string, v interface{}) {
				fmt.Fprintf(out, "%s: %s\n", label.Sprintf("%-9s", k), value.Sprint(v))
			}
			line("dir", q.Dir())
			line("pattern", q.Pattern())
			line("extension", q.Extension())
			line("scanned", found)
			line("length", q.QueueLen())
			line("last", q.LastFileNum())
			return nil
		},
	}

	lsCmd = &cobra.Command{
		Use:   "ls",
		Short: "list queued files, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := openQueue()
			if err != nil {
				return err
			}
			defer q.Close()

			out := cmd.OutOrStdout()
			for _, fileNum := range q.Pending() {
				path, err := q.PathFor(fileNum)
				if err != nil {
					return err
				}

				info, err := os.Stat(path)
				if err != nil {
					fmt.Fprintf(out, "%s %s %s\n", label.Sprintf("%8d", fileNum), path, warn.Sprint("missing"))
					continue
				}
				fmt.Fprintf(out, "%s %s %d\n", label.Sprintf("%8d", fileNum), path, info.Size())
			}
			return nil
		},
	}

	rmCmd = &cobra.Command{
		Use:   "rm <num> [num...]",
		Short: "delete queue files by number",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			allExt, _ := cmd.Flags().GetBool("all-ext")

			return withLockedQueue(func(q *seqfile.SequentialFile) error {
				for _, arg := range args {
					fileNum, err := strconv.Atoi(arg)
					if err != nil || fileNum <= seqfile.NoFile {
						return errors.Errorf("invalid file number %q", arg)
					}
					if err := q.RemoveFileNum(fileNum, allExt); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	purgeCmd = &cobra.Command{
		Use:   "purge",
		Short: "delete everything in the queue directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			removeDir, _ := cmd.Flags().GetBool("remove-dir")

			return withLockedQueue(func(q *seqfile.SequentialFile) error {
				return q.RemoveAll(removeDir)
			})
		},
	}
)

// push copies src ("-" for stdin) into the queue and returns the new path.
func push(q *seqfile.SequentialFile, src string) (string, error) {
	var in io.Reader = os.Stdin
	if src != "-" {
		f, err := os.Open(src)
		if err != nil {
			return "", err
		}
		defer f.Close()
		in = f
	}

	fileNum := q.Reserve()
	path, err := q.PathFor(fileNum)
	if err != nil {
		return "", err
	}

	if _, err := filelock.AtomicWrite(path, in); err != nil {
		return "", errors.Wrapf(err, "push %s", src)
	}

	q.Enqueue(fileNum)
	return path, nil
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(w, f)
	return err
}

func init() {
	popCmd.Flags().Bool("cat", false, "write the file content instead of its path")
	popCmd.Flags().Bool("keep", false, "leave the file on disk")
	popCmd.Flags().Bool("all-ext", false, "also delete files with other extensions")
	rmCmd.Flags().Bool("all-ext", false, "delete the number under every extension")
	purgeCmd.Flags().Bool("remove-dir", false, "remove the queue directory too")

	rootCmd.AddCommand(pushCmd, popCmd, peekCmd, statCmd, lsCmd, rmCmd, purgeCmd)
}
