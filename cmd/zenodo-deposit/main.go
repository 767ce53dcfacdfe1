package main

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"

	zenodo "github.com/compchem-dev/zenodo-deposit"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out so tests can drive it
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "publish":
		return runPublish(args[2:], stdout, stderr)
	case "download":
		return runDownload(args[2:], stdout, stderr)
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `Usage: zenodo-deposit <command> [flags]

Commands:
  publish    Create a deposit, upload files and publish it
  download   Fetch all files of a published record

Run 'zenodo-deposit <command> -h' for command flags.`)
}

func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.WarnLevel)
	}
	return log
}

// transferProgress renders one terminal progress bar per transferred
// file. Files arrive sequentially, so a new filename means the previous
// bar is done.
func transferProgress(w io.Writer) zenodo.ProgressFunc {
	var bar *progressbar.ProgressBar
	var current string
	return func(filename string, transferred, total int64) {
		if filename != current {
			current = filename
			bar = progressbar.NewOptions64(total,
				progressbar.OptionSetWriter(w),
				progressbar.OptionSetDescription(filename),
				progressbar.OptionShowBytes(true),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = bar.Set64(transferred)
	}
}
