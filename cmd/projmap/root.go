package main

import (
	"github.com/spf13/cobra"

	"projmap/internal/version"
)

var (
	// projectFlag is the CLI --project flag value
	projectFlag string
)

var rootCmd = &cobra.Command{
	Use:   "projmap",
	Short: "projmap - project map generator",
	Long: `projmap scans a project tree and maintains compact, versioned maps of
its files, dependencies, components and modules. Maps live outside the
tree, carry their own history, and are refreshed in full or patched
incrementally from whatever changed.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("projmap version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&projectFlag, "project", "",
		"Project root to operate on (default: current directory)")
}
