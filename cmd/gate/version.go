package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// 构建时通过 -ldflags "-X main.version=..." 注入。
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "打印构建信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "version: %s\ncommit: %s\nbuilt: %s\n", version, commit, buildDate)
	},
}
