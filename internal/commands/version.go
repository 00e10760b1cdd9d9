package commands

import (
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gaborage/sdkcore/identity"
	"github.com/gaborage/sdkcore/middleware"
)

// NewVersionCommand creates the version command
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the tool version and the tracking headers this build sends",
		Run: func(cmd *cobra.Command, _ []string) {
			printVersion(cmd.OutOrStdout(), version, identity.DefaultTracking())
		},
	}
}

func printVersion(out io.Writer, version string, t identity.Tracking) {
	fmt.Fprintf(out, "sdkcore version %s\n", version)
	fmt.Fprintf(out, "Built with %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	fmt.Fprintf(out, "%s: %s\n", middleware.HeaderSDKID, t.SDK)
	if t.HasSource {
		fmt.Fprintf(out, "%s: %s\n", middleware.HeaderSource, t.Source)
	}
}
