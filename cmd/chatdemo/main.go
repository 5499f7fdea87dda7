// Command chatdemo is a small CLI exercising the chatkit Client: login,
// connect, send a message and watch incoming events. Grounded on
// bken/server's subcommand dispatch style, ported to spf13/cobra the way
// the rest of the retrieved pack builds its CLIs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chatdemo",
		Short: "Exercise the chatkit Client from the command line",
	}

	rootCmd.PersistentFlags().String("endpoint", "http://localhost:8080", "chat server endpoint")
	rootCmd.PersistentFlags().String("user", "", "user id")
	rootCmd.PersistentFlags().String("token", "", "auth token (from login)")
	rootCmd.PersistentFlags().String("root", "", "local storage root directory (empty means the current directory; empty --root and --db together use an in-memory store)")
	rootCmd.PersistentFlags().String("db", "chatdemo", "local storage database name")

	rootCmd.AddCommand(cmdLogin())
	rootCmd.AddCommand(cmdSignup())
	rootCmd.AddCommand(cmdConnect())
	rootCmd.AddCommand(cmdSend())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
