package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mnemo-org/mnemo/internal/upgrade"
)

// Upgrade replaces the running binary with a newer release.
func Upgrade() *cobra.Command {
	return NewCommand(
		&cobra.Command{
			Use:   "upgrade",
			Short: "Upgrade to the latest release",
			Long: `Download the latest release from GitHub, verify its checksum and
replace the current binary in place. Installations managed by a
package manager (homebrew, snap, go install) are refused with a hint
to use that manager instead.`,
			Example: `  mnemo upgrade
  mnemo upgrade --check
  mnemo upgrade --version v1.2.0 --backup`,
		},
		[]commandLineFlag{
			targetVersionFlag, checkFlag, dryRunFlag, forceFlag,
			prereleaseFlag, backupFlag, yesFlag,
		},
		runUpgrade,
	)
}

var (
	targetVersionFlag = commandLineFlag{
		name:  "version",
		usage: "upgrade to a specific version tag instead of the latest",
	}
	checkFlag = commandLineFlag{
		name:  "check",
		kind:  flagBool,
		usage: "only check whether an upgrade is available",
	}
	dryRunFlag = commandLineFlag{
		name:  "dry-run",
		kind:  flagBool,
		usage: "show what would be done without changing anything",
	}
	forceFlag = commandLineFlag{
		name:  "force",
		kind:  flagBool,
		usage: "reinstall even when already on the target version",
	}
	prereleaseFlag = commandLineFlag{
		name:  "prerelease",
		kind:  flagBool,
		usage: "consider pre-release versions",
	}
	backupFlag = commandLineFlag{
		name:  "backup",
		kind:  flagBool,
		usage: "keep a .bak copy of the current binary",
	}
)

func runUpgrade(ctx *Context, _ []string) error {
	flags := ctx.Command.Flags()
	targetVersion, _ := flags.GetString("version")
	checkOnly, _ := flags.GetBool("check")
	dryRun, _ := flags.GetBool("dry-run")
	force, _ := flags.GetBool("force")
	prerelease, _ := flags.GetBool("prerelease")
	backup, _ := flags.GetBool("backup")
	yes, _ := flags.GetBool("yes")

	if !checkOnly && !dryRun {
		if ok, reason := upgrade.CanSelfUpgrade(); !ok {
			return fmt.Errorf("%s", reason)
		}
	}

	opts := upgrade.Options{
		TargetVersion:     targetVersion,
		CheckOnly:         checkOnly,
		DryRun:            dryRun,
		CreateBackup:      backup,
		Force:             force,
		IncludePreRelease: prerelease,
		OnProgress: func(downloaded, total int64) {
			if ctx.Quiet || total <= 0 {
				return
			}
			fmt.Printf("\rDownloading... %s / %s (%d%%)",
				upgrade.FormatBytes(downloaded), upgrade.FormatBytes(total),
				downloaded*100/total)
			if downloaded >= total {
				fmt.Println()
			}
		},
	}

	info, err := upgrade.FetchReleaseInfo(ctx, opts)
	if err != nil {
		return err
	}

	if !checkOnly && !dryRun && !yes {
		ok, err := confirm(fmt.Sprintf("Upgrade to %s?",
			upgrade.NormalizeVersionTag(info.Release.TagName)))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	store := upgrade.NewFileStore(ctx.Config.Paths.DataDir)
	result, err := upgrade.UpgradeWithReleaseInfo(ctx, opts, info, store)
	if err != nil {
		return err
	}

	if checkOnly {
		fmt.Print(upgrade.FormatCheckResult(result))
	} else {
		fmt.Print(upgrade.FormatResult(result))
	}
	return nil
}
