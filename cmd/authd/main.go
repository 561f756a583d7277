// Command authd runs the authorization server described by SPEC_FULL.md: the
// authorize/grant_scopes/token protocol, revoke/userinfo/discovery, and the
// user-removal sweep, fronted by the ambient HTTP/CLI/config glue
// cmd/dex/serve.go models.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time via -ldflags, matching cmd/dex/version.go.
var version = "dev"

func commandRoot() *cobra.Command {
	root := &cobra.Command{
		Use: "authd",
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
			os.Exit(2)
		},
	}
	root.AddCommand(commandServe())
	root.AddCommand(commandVersion())
	root.AddCommand(commandGenKey())
	return root
}

func commandVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version and exit",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Printf("authd version: %s\n", version)
		},
	}
}

func main() {
	if err := commandRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}
}
