// Command shopbotctl talks to a running shopbot webhook from the terminal
// and issues the credentials the webhook accepts.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "shopbotctl",
		Short:         "Drive and administer the shoe-shop chatbot webhook",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSendCmd(), newHashPasswordCmd(), newTokenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
