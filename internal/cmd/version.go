package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mnemo-org/mnemo/internal/build"
	"github.com/mnemo-org/mnemo/internal/cmn/logger"
	"github.com/mnemo-org/mnemo/internal/cmn/logger/tag"
	"github.com/mnemo-org/mnemo/internal/upgrade"
)

// Version prints the build version, optionally checking for updates.
func Version() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
		},
		[]commandLineFlag{checkUpdateFlag},
		runVersion,
	)
}

var checkUpdateFlag = commandLineFlag{
	name:  "check-update",
	kind:  flagBool,
	usage: "check whether a newer release is available",
}

func runVersion(ctx *Context, _ []string) error {
	fmt.Printf("%s %s (%s/%s)\n", build.Slug, build.Version, runtime.GOOS, runtime.GOARCH)

	if check, _ := ctx.Command.Flags().GetBool("check-update"); !check {
		return nil
	}

	store := upgrade.NewFileStore(ctx.Config.Paths.DataDir)
	cache, err := upgrade.CheckAndUpdateCache(store, build.Version)
	if err != nil {
		logger.Debug(ctx.Context, "Update check failed", tag.Error(err))
		fmt.Println("Could not check for updates.")
		return nil
	}
	if cache == nil {
		return nil
	}
	if cache.UpdateAvailable {
		fmt.Printf("A newer version is available: %s (current %s)\n",
			upgrade.NormalizeVersionTag(cache.LatestVersion), cache.CurrentVersion)
		fmt.Println("Run 'mnemo upgrade' to update.")
	} else {
		fmt.Println("You are on the latest version.")
	}
	return nil
}
