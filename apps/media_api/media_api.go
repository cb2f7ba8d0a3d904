package main

import (
	"fmt"
	"os"

	"github.com/pawgram/media-services/api"
	"github.com/pawgram/media-services/models/common"
	"github.com/pawgram/media-services/util/cli"
)

func main() {
	cli.Init()
	opts := cli.ParseOpts()
	if opts.PrintHelp {
		printHelp()
		cli.PrintDefaults()
		os.Exit(0)
	}

	// If anything goes wrong here, this panics.
	appCtx := common.NewContext()
	service := api.NewMediaService(appCtx)

	// Serve blocks until the process is killed.
	err := service.Serve()
	if err != nil {
		appCtx.Logger.Fatalf("Media API server stopped: %v", err)
	}
}

func printHelp() {
	message := `
media_api serves the media HTTP endpoints for the app backends:
presigned GET URLs for stored media, direct multipart uploads, and
presigned upload URLs. The read path carries no auth; presigned URLs
are the capability and they expire.
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
