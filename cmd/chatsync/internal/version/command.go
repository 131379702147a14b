package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tickerdesk/chatsync/cmd/chatsync/internal"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print chatsync version",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println("chatsync " + internal.FormatVersion())
		},
	}
}
