package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Trigger a force recovery on the service",
	Long: `Clear the service's error state and transient caches and re-run a
full resume. Equivalent to the Try Again button on the error screen.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return forceRecover()
	},
}

var recoverStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the resume state machine",
	RunE: func(cmd *cobra.Command, args []string) error {
		return recoveryStatus()
	},
}

func init() {
	recoverCmd.AddCommand(recoverStatusCmd)
}

func forceRecover() error {
	body, err := apiPost("/api/v1/lifecycle/recover", nil)
	if err != nil {
		return err
	}
	if output == "json" {
		fmt.Println(string(body))
		return nil
	}
	fmt.Println("Recovery started")
	return nil
}

func recoveryStatus() error {
	body, err := apiGet("/api/v1/lifecycle")
	if err != nil {
		return err
	}

	if output == "json" {
		fmt.Println(string(body))
		return nil
	}

	var resp struct {
		State           string `json:"state"`
		Loading         bool   `json:"loading"`
		Error           string `json:"error"`
		BlockedByAuth   int    `json:"blocked_by_auth"`
		WatchdogFirings int    `json:"watchdog_firings"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Printf("State:            %s\n", resp.State)
	fmt.Printf("Loading:          %v\n", resp.Loading)
	if resp.Error != "" {
		fmt.Printf("Error:            %s\n", resp.Error)
	}
	fmt.Printf("Blocked by auth:  %d\n", resp.BlockedByAuth)
	fmt.Printf("Watchdog firings: %d\n", resp.WatchdogFirings)
	return nil
}
