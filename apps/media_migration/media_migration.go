package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pawgram/media-services/constants"
	"github.com/pawgram/media-services/migration"
	"github.com/pawgram/media-services/models/common"
	"github.com/pawgram/media-services/util"
	"github.com/pawgram/media-services/util/cli"
)

// Exit codes. Partial failure means some records migrated and some
// exhausted their retries.
const (
	ExitOK             = 0
	ExitPartialFailure = 1
	ExitRuntimeError   = 2
	ExitAlreadyRunning = 3
)

func main() {
	cli.Init()
	opts := cli.ParseOpts()
	if opts.PrintHelp {
		printHelp()
		cli.PrintDefaults()
		os.Exit(ExitOK)
	}

	// If anything goes wrong here, this panics.
	appCtx := common.NewContext()

	// Checkpoints of a finished run stay in Redis until an operator
	// clears them.
	if opts.ForgetRun != "" {
		err := appCtx.RedisClient.RunDelete(opts.ForgetRun, constants.Categories)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot delete checkpoints for run %s: %v\n", opts.ForgetRun, err)
			os.Exit(ExitRuntimeError)
		}
		fmt.Printf("Deleted checkpoints for run %s\n", opts.ForgetRun)
		os.Exit(ExitOK)
	}

	// Two concurrent migrations would race on the same records.
	pidFile := filepath.Join(appCtx.Config.RunDir, "media_migration.pid")
	if util.IsRunningInOtherProcess(pidFile) {
		fmt.Fprintln(os.Stderr, "Another migration is already running. Exiting.")
		os.Exit(ExitAlreadyRunning)
	}
	if err := util.WritePidFile(pidFile); err != nil {
		appCtx.Logger.Warningf("Cannot write pid file %s: %v", pidFile, err)
	}

	runID := opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	appCtx.Logger.Infof("Starting migration run %s", runID)

	engine := migration.NewEngine(appCtx, runID)
	if opts.BatchSize > 0 {
		engine.BatchSize = opts.BatchSize
	}
	if opts.MaxAttempts > 0 {
		engine.MaxAttempts = opts.MaxAttempts
	}
	if opts.Categories != "" {
		engine.Categories = splitCategories(opts.Categories)
	}

	stats, err := engine.Run(context.Background())
	util.DeletePidFile(pidFile)
	for _, categoryStats := range stats.Categories {
		fmt.Println(categoryStats.String())
	}
	fmt.Println(stats.GrandTotal().String())
	if stats.ResidualLegacyCount > 0 {
		fmt.Printf("WARNING: %d fields still reference a legacy host\n",
			stats.ResidualLegacyCount)
	}
	if appCtx.EventPublisher != nil {
		appCtx.EventPublisher.Stop()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Migration run %s did not complete: %v\n", runID, err)
		os.Exit(ExitRuntimeError)
	}
	if stats.AnyFailed() {
		os.Exit(ExitPartialFailure)
	}
}

func splitCategories(list string) []string {
	categories := make([]string, 0)
	for _, category := range strings.Split(list, ",") {
		category = strings.TrimSpace(category)
		if category != "" {
			categories = append(categories, category)
		}
	}
	return categories
}

func printHelp() {
	message := `
media_migration copies legacy-hosted media (avatars, post media, pet
photos, marketplace images) into our private bucket and rewrites the
source records to the new canonical URLs. Records already pointing at
the bucket are skipped; records on unrecognized hosts are left
untouched. The run ends with a verification pass that counts fields
still referencing a legacy host.

Exit codes:
    0 - all records migrated or skipped
    1 - some records failed after retries
    2 - the run could not complete (record source unreachable, etc.)
    3 - another migration is already running
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
