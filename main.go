package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"commit-message-refiner/internal"
	"commit-message-refiner/internal/apply"
	"commit-message-refiner/internal/cli"
	"commit-message-refiner/internal/config"
	"commit-message-refiner/internal/logger"
	"commit-message-refiner/internal/report"
	"commit-message-refiner/internal/source"
	"commit-message-refiner/internal/source/githubsrc"
	"commit-message-refiner/internal/source/gitlabsrc"
	"commit-message-refiner/internal/source/local"
)

func main() {
	// Parse command-line arguments
	args, err := cli.Parse()
	if err != nil {
		log.Fatalf("Failed to parse arguments: %v", err)
	}

	// Handle help flag
	if args.ShowHelp {
		cli.ShowUsage()
		os.Exit(0)
	}

	// Load configuration from environment variables
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup logging (stderr; stdout carries the report)
	logger.Setup(cfg)

	// Build commit sources from the arguments
	sources, err := buildSources(args, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	// Create the refiner
	refiner, err := internal.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create refiner: %v", err)
	}

	ctx := context.Background()
	rep, md, err := refiner.Refine(ctx, sources, internal.Options{
		Concurrency:     args.Concurrency,
		LegacyBatchSize: args.BatchSize,
		NoCoherence:     args.NoCoherence,
	})
	if err != nil {
		log.Fatalf("Failed to refine commit messages: %v", err)
	}

	// Output report
	if err := report.Render(os.Stdout, args.Output, rep, md); err != nil {
		log.Fatalf("Failed to render report: %v", err)
	}

	// Apply suggestions back to the local repository
	if args.Apply {
		applier := &apply.Applier{
			RepoPath:  args.RepoPath,
			AssumeYes: args.AssumeYes,
			Stdin:     os.Stdin,
			Stdout:    os.Stderr,
		}
		if _, err := applier.Apply(ctx, rep); err != nil {
			log.Fatalf("Failed to apply suggestions: %v", err)
		}
	}

	// Signal total failure to scripts
	if len(rep.Results) > 0 && rep.SucceededUnits == 0 {
		os.Exit(1)
	}
}

// buildSources maps the arguments to commit sources: a local range, or
// one source per compare URL routed by platform.
func buildSources(args *cli.Args, cfg *config.Config) ([]source.Source, error) {
	if args.Range != "" {
		return []source.Source{local.New(args.RepoPath, args.Range)}, nil
	}

	var sources []source.Source
	for _, link := range args.CompareLinks {
		switch {
		case githubsrc.IsCompareURL(link):
			src, err := githubsrc.New(cfg, link)
			if err != nil {
				return nil, fmt.Errorf("invalid GitHub compare URL %q: %v", link, err)
			}
			sources = append(sources, src)
		case gitlabsrc.IsCompareURL(link):
			src, err := gitlabsrc.New(cfg, link)
			if err != nil {
				return nil, fmt.Errorf("invalid GitLab compare URL %q: %v", link, err)
			}
			sources = append(sources, src)
		default:
			return nil, fmt.Errorf("unsupported compare URL: %s", link)
		}
	}
	return sources, nil
}
