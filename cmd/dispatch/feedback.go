package main

import (
	"github.com/spf13/cobra"

	"triageflow/runtime"
)

var (
	feedbackRating string
	feedbackNote   string
)

var feedbackCmd = &cobra.Command{
	Use:   "feedback <item-id>",
	Short: "Record a verdict on a processed work item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return send(runtime.CommandFeedback, runtime.FeedbackPayload{
			ItemID: args[0],
			Rating: feedbackRating,
			Note:   feedbackNote,
		})
	},
}

func init() {
	feedbackCmd.Flags().StringVar(&feedbackRating, "rating", "", "positive or negative")
	feedbackCmd.Flags().StringVar(&feedbackNote, "note", "", "optional free-form note")
	_ = feedbackCmd.MarkFlagRequired("rating")
}
