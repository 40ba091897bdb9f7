// Package cli parses command-line arguments for the cmr binary.
package cli

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// Args holds the parsed command-line arguments
type Args struct {
	Range        string   // Local revision range, e.g. "HEAD~5..HEAD"
	RepoPath     string   // Local repository path (default ".")
	CompareLinks []string // GitHub/GitLab compare URLs

	Concurrency int    // Overrides CMR_CONCURRENCY when > 0
	BatchSize   int    // Legacy fixed-size batch mode when > 0
	NoCoherence bool   // Skip the cross-commit coherence pass
	Output      string // text, json, or yaml
	Apply       bool   // Write accepted suggestions back to the repo
	AssumeYes   bool   // Skip the apply confirmation prompt
	ShowHelp    bool
}

// Parse parses command-line arguments into an Args struct
func Parse() (*Args, error) {
	return parse(os.Args[1:])
}

func parse(argv []string) (*Args, error) {
	args := &Args{}
	var compareLinks string

	fs := flag.NewFlagSet("cmr", flag.ContinueOnError)
	fs.Usage = func() {}

	fs.StringVar(&args.Range, "range", "", "Local git revision range (e.g. HEAD~5..HEAD)")
	fs.StringVar(&args.Range, "r", "", "Shorthand for --range")
	fs.StringVar(&args.RepoPath, "repo", ".", "Path to the local repository")
	fs.StringVar(&compareLinks, "compare-links", "", "Comma-separated GitHub/GitLab compare URLs")
	fs.StringVar(&compareLinks, "c", "", "Shorthand for --compare-links")
	fs.IntVar(&args.Concurrency, "concurrency", 0, "Number of concurrent model calls (overrides CMR_CONCURRENCY)")
	fs.IntVar(&args.BatchSize, "batch-size", 0, "Fixed batch size (enables legacy batch mode)")
	fs.BoolVar(&args.NoCoherence, "no-coherence", false, "Skip the cross-commit coherence pass")
	fs.StringVar(&args.Output, "output", "text", "Output format: text, json, or yaml")
	fs.BoolVar(&args.Apply, "apply", false, "Apply suggested messages to the local repository")
	fs.BoolVar(&args.AssumeYes, "yes", false, "Skip the apply confirmation prompt")
	fs.BoolVar(&args.AssumeYes, "y", false, "Shorthand for --yes")
	fs.BoolVar(&args.ShowHelp, "help", false, "Show usage information")
	fs.BoolVar(&args.ShowHelp, "h", false, "Shorthand for --help")

	if err := fs.Parse(argv); err != nil {
		if err == flag.ErrHelp {
			args.ShowHelp = true
			return args, nil
		}
		return nil, err
	}

	if compareLinks != "" {
		for _, link := range strings.Split(compareLinks, ",") {
			if trimmed := strings.TrimSpace(link); trimmed != "" {
				args.CompareLinks = append(args.CompareLinks, trimmed)
			}
		}
	}

	if args.ShowHelp {
		return args, nil
	}

	// With no source given, refine the most recent local commit
	if args.Range == "" && len(args.CompareLinks) == 0 {
		args.Range = "HEAD~1..HEAD"
	}

	return args, validate(args)
}

func validate(args *Args) error {
	if args.Range != "" && len(args.CompareLinks) > 0 {
		return fmt.Errorf("--range and --compare-links are mutually exclusive")
	}
	if args.Apply && args.Range == "" {
		return fmt.Errorf("--apply requires a local --range source")
	}
	if args.Concurrency < 0 {
		return fmt.Errorf("--concurrency must be positive, got %d", args.Concurrency)
	}
	if args.BatchSize < 0 {
		return fmt.Errorf("--batch-size must be positive, got %d", args.BatchSize)
	}

	switch strings.ToLower(args.Output) {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("--output must be one of text, json, yaml; got %q", args.Output)
	}
	return nil
}

// ShowUsage prints usage information
func ShowUsage() {
	fmt.Print(`cmr improves git commit messages using an AI model.

Usage:
  cmr --range <rev-range> [--repo <path>] [flags]
  cmr --compare-links <url1>,<url2> [flags]

Sources:
  --range, -r          Local git revision range (default HEAD~1..HEAD)
  --repo               Path to the local repository (default ".")
  --compare-links, -c  Comma-separated GitHub/GitLab compare URLs

Flags:
  --concurrency        Number of concurrent model calls (overrides CMR_CONCURRENCY)
  --batch-size         Fixed batch size (enables legacy batch mode)
  --no-coherence       Skip the cross-commit coherence pass
  --output             Output format: text, json, or yaml (default text)
  --apply              Apply suggested messages to the local repository
  --yes, -y            Skip the apply confirmation prompt
  --help, -h           Show this help

Examples:
  cmr --range HEAD~5..HEAD
  cmr --range main..feature --output json
  cmr --compare-links https://github.com/acme/widgets/compare/v1.0.0...v1.1.0
  cmr --range HEAD~1..HEAD --apply --yes
`)
}
