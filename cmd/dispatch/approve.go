package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"triageflow/runtime"
)

var (
	approveIdempotencyKey string
	approveOverride       string
)

var approveCmd = &cobra.Command{
	Use:   "approve <item-id>",
	Short: "Approve a work item and execute its proposed action",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		payload := runtime.ApprovePayload{
			ItemID:         args[0],
			IdempotencyKey: approveIdempotencyKey,
		}
		if approveOverride != "" {
			if !json.Valid([]byte(approveOverride)) {
				return fmt.Errorf("--override is not valid JSON")
			}
			payload.PayloadOverride = json.RawMessage(approveOverride)
		}
		return send(runtime.CommandApprove, payload)
	},
}

func init() {
	approveCmd.Flags().StringVar(&approveIdempotencyKey, "idempotency-key", "", "caller-supplied idempotency key")
	approveCmd.Flags().StringVar(&approveOverride, "override", "", "JSON action payload replacing the stored proposal")
}
