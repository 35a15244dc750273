package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/kailas-cloud/qacache/internal/config"
	"github.com/kailas-cloud/qacache/internal/version"
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "qacachectl",
		Usage:   "Ask, warm and seed the tiered QA cache",
		Version: version.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Config environment (local, dev, prod)",
				Value:   config.GetEnv(),
				EnvVars: []string{"ENV"},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Explicit config file path (overrides --env)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "Answer one question through the cache tiers",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the answer as JSON",
					},
				},
			},
			{
				Name:   "warm",
				Usage:  "Resolve a file of questions to fill the caches",
				Action: warmCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Questions file, one per line; blank lines and # comments are skipped",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Concurrent resolutions (0 uses pipeline.batch_workers)",
					},
				},
			},
			{
				Name:  "gold",
				Usage: "Manage the curated corpus",
				Subcommands: []*cli.Command{
					{
						Name:   "seed",
						Usage:  "Embed and upsert curated pairs from a YAML or JSON file",
						Action: goldSeedCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:     "file",
								Aliases:  []string{"f"},
								Usage:    "Corpus file: a list of {id, question, answer}",
								Required: true,
							},
							&cli.IntFlag{
								Name:  "workers",
								Usage: "Concurrent embedding chunks (0 uses pipeline.batch_workers)",
							},
						},
					},
				},
			},
			{
				Name:   "health",
				Usage:  "Check the configured stores and providers",
				Action: healthCommand,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
