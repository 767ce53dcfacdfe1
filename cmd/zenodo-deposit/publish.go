package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	zenodo "github.com/compchem-dev/zenodo-deposit"
)

func runPublish(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		sandbox     = fs.Bool("sandbox", false, "use sandbox.zenodo.org")
		production  = fs.Bool("production", false, "use zenodo.org (the default)")
		title       = fs.String("title", "", "dataset title (required)")
		description = fs.String("description", "", "dataset description (required)")
		creators    = fs.String("creators", "", "authors as 'Last, First;Last, First' (required)")
		keywords    = fs.String("keywords", "", "comma-separated keywords")
		communities = fs.String("communities", "", "comma-separated Zenodo communities")
		relatedDOIs = fs.String("related-dois", "", "comma-separated related DOIs")
		license     = fs.String("license", "cc-by-4.0", "license identifier")
		yes         = fs.Bool("yes", false, "publish without asking for confirmation")
		verbose     = fs.Bool("verbose", false, "enable debug logging")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *sandbox && *production {
		fmt.Fprintln(stderr, "choose one of --sandbox or --production")
		return 2
	}

	files := fs.Args()
	if len(files) == 0 {
		fmt.Fprintln(stderr, "no files to upload")
		fs.Usage()
		return 2
	}

	// Verify local files before touching the service
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			fmt.Fprintf(stderr, "error: %s is not a file or doesn't exist\n", path)
			return 1
		}
	}

	meta := &zenodo.DepositMetadata{
		Title:       *title,
		Description: *description,
		License:     *license,
		Keywords:    splitList(*keywords),
		Communities: splitList(*communities),
		RelatedDOIs: splitList(*relatedDOIs),
	}
	for _, name := range strings.Split(*creators, ";") {
		if name = strings.TrimSpace(name); name != "" {
			meta.Creators = append(meta.Creators, zenodo.Creator{Name: name})
		}
	}
	if err := meta.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	token, err := zenodo.TokenFromEnv(*sandbox)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	cfg := zenodo.DefaultConfig()
	cfg.Sandbox = *sandbox
	cfg.Token = token
	cfg.Logger = newLogger(*verbose)
	client, err := zenodo.NewClient(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	ctx := context.Background()

	fmt.Fprintln(stdout, "Verifying token permissions...")
	if err := client.VerifyToken(ctx); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "Creating deposit...")
	deposit, err := client.CreateDeposit(ctx, meta)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Created draft deposit %d\n", deposit.ID)

	for _, path := range files {
		md5sum, sha256sum, err := zenodo.FileChecksums(path)
		if err != nil {
			fmt.Fprintf(stderr, "error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "%s\n  md5:    %s\n  sha256: %s\n", path, md5sum, sha256sum)
	}

	report, err := client.UploadFiles(ctx, deposit.ID, files, transferProgress(stdout))
	if report != nil {
		for _, path := range report.Uploaded {
			fmt.Fprintf(stdout, "uploaded %s\n", path)
		}
		for _, failure := range report.Failed {
			fmt.Fprintf(stderr, "failed   %s: %v\n", failure.Path, failure.Err)
		}
	}
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		fmt.Fprintf(stderr, "re-run the failed files against deposit %d\n", deposit.ID)
		return 1
	}

	// Confirm the files actually landed before the irreversible step
	deposit, err = client.GetDeposit(ctx, deposit.ID)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if len(deposit.Files) == 0 {
		fmt.Fprintf(stderr, "error: no files were attached to deposit %d\n", deposit.ID)
		return 1
	}

	if !*yes && !confirmPublish(stdout, deposit) {
		fmt.Fprintf(stdout, "Not published. Draft deposit %d kept.\n", deposit.ID)
		return 0
	}

	published, err := client.Publish(ctx, deposit.ID)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	fmt.Fprintln(stdout, "Success! Dataset published:")
	fmt.Fprintf(stdout, "DOI: %s\n", published.DOI)
	fmt.Fprintf(stdout, "URL: %s\n", published.HTMLLink)
	return 0
}

// confirmPublish asks for explicit consent; publishing cannot be undone
func confirmPublish(stdout io.Writer, deposit *zenodo.Deposit) bool {
	fmt.Fprintf(stdout, "Publish deposit %d with %d file(s)? Publishing cannot be undone. [y/N]: ",
		deposit.ID, len(deposit.Files))
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
