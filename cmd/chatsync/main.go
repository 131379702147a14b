// chatsync - real-time message synchronization core for TickerDesk chat

package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tickerdesk/chatsync/cmd/chatsync/internal/run"
	"github.com/tickerdesk/chatsync/cmd/chatsync/internal/version"
)

func NewChatsyncCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "chatsync",
		Short:   "chatsync - TickerDesk chat synchronization core",
		Example: "chatsync run --channel general",
	}

	cmd.AddCommand(
		run.NewRunCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewChatsyncCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
