package main

import (
	"github.com/spf13/cobra"

	"triageflow/runtime"
)

var dismissCmd = &cobra.Command{
	Use:   "dismiss <item-id>",
	Short: "Dismiss a work item without executing its action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(runtime.CommandDismiss, runtime.DismissPayload{ItemID: args[0]})
	},
}
