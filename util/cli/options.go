package cli

import (
	"flag"
)

type Options struct {
	BatchSize   int
	Categories  string
	ForgetRun   string
	MaxAttempts int
	PrintHelp   bool
	RunID       string
}

var opts = Options{}
var defaultAttempts = 3
var defaultBatchSize = 10

var EnvMessage = `This requires the following environment vars:

MEDIA_CONFIG_DIR - Path to the directory containing the .env settings file.

MEDIA_SERVICES_CONFIG - Name of the configuration to load. For example:
    test - Loads .env.test from MEDIA_CONFIG_DIR
    demo - Loads .env.demo from MEDIA_CONFIG_DIR
`

func Init() {
	flag.IntVar(&opts.BatchSize, "batch-size", defaultBatchSize, "Number of records to migrate between pauses")
	flag.IntVar(&opts.MaxAttempts, "max-attempts", defaultAttempts, "Maximum number of times to attempt migrating a record")
	flag.BoolVar(&opts.PrintHelp, "help", false, "Print help message")
	flag.StringVar(&opts.Categories, "categories", "", "Comma-separated list of categories to migrate. Default is all.")
	flag.StringVar(&opts.ForgetRun, "forget-run", "", "Delete the checkpoints of a finished run and exit")
	flag.StringVar(&opts.RunID, "run-id", "", "Reuse a prior run's ID to pick up its checkpoints. Default is a fresh ID.")
}

func ParseOpts() Options {
	flag.Parse()
	return opts
}

func PrintDefaults() {
	flag.PrintDefaults()
}
