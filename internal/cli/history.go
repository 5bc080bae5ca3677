package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <market_hash_name>",
	Short: "Look up sales history statistics for one item",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// 名称里常带空格，未加引号时拼回去
		name := strings.Join(args, " ")
		return getApp().History(cmd.Context(), name, cmd.OutOrStdout())
	},
}
