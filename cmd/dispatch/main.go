package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"triageflow/config"
	"triageflow/runtime"
)

var (
	userID string
	source string

	dispatcher *runtime.Dispatcher
)

var rootCmd = &cobra.Command{
	Use:   "dispatch <command>",
	Short: "Send runtime commands to a triageflow server",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadDispatch()
		if err != nil {
			return err
		}
		if userID == "" {
			userID = cfg.DefaultUserID
		}

		token := cfg.Token
		if token == "" && cfg.Secret != "" {
			token, err = runtime.MintServiceToken([]byte(cfg.Secret), "dispatch-cli", time.Now().UTC())
			if err != nil {
				return err
			}
		}

		dispatcher = runtime.NewDispatcher(runtime.DispatcherConfig{
			BaseURL:     cfg.BaseURL,
			Token:       token,
			Timeout:     cfg.Timeout,
			MaxAttempts: cfg.MaxAttempts,
			Logger:      slog.New(slog.NewTextHandler(os.Stderr, nil)),
		})
		return nil
	},
	SilenceUsage: true,
}

// send wraps payload in a command envelope, dispatches it and prints the
// result body to stdout.
func send(commandType runtime.CommandType, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	result, err := dispatcher.Dispatch(context.Background(), runtime.Command{
		Type: commandType,
		Context: runtime.CommandContext{
			UserID:    userID,
			RequestID: uuid.NewString(),
			Source:    source,
			IssuedAt:  time.Now().UTC(),
		},
		Payload: encoded,
	})
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, result.Result, "", "  "); err != nil {
		return fmt.Errorf("format result: %w", err)
	}
	fmt.Println(pretty.String())
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "acting user id (default from DEFAULT_USER_ID)")
	rootCmd.PersistentFlags().StringVar(&source, "source", "cli", "command source label")
	rootCmd.AddCommand(ingestCmd, approveCmd, dismissCmd, feedbackCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
