package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List pending notifications from the recovery view",
	Long: `List every not-handled notification within the recovery window,
as the emergency recovery screen would show it. Dismissed notifications
appear here too; handled ones never do.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listPending()
	},
}

type pendingRecord struct {
	ID               string    `json:"id"`
	TransactionID    string    `json:"transaction_id"`
	TransactionTable string    `json:"transaction_table"`
	EventType        string    `json:"event_type"`
	PriorityLevel    string    `json:"priority_level"`
	IsDismissed      bool      `json:"is_dismissed"`
	CreatedAt        time.Time `json:"created_at"`
}

func listPending() error {
	body, err := apiGet("/api/v1/recovery/pending")
	if err != nil {
		return err
	}

	if output == "json" {
		fmt.Println(string(body))
		return nil
	}

	var resp struct {
		Pending []pendingRecord `json:"pending"`
		Count   int             `json:"count"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if resp.Count == 0 {
		fmt.Println("No pending notifications")
		return nil
	}

	fmt.Printf("%d pending notification(s):\n\n", resp.Count)
	for _, rec := range resp.Pending {
		state := "pending"
		if rec.IsDismissed {
			state = "dismissed"
		}
		fmt.Printf("  %s  %-8s %-6s %-9s tx=%s (%s)  %s\n",
			rec.ID, rec.PriorityLevel, rec.EventType, state,
			rec.TransactionID, rec.TransactionTable,
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
		)
	}
	return nil
}

// apiGet performs an authenticated GET against the service.
func apiGet(path string) ([]byte, error) {
	req, err := http.NewRequest("GET", apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+authToken)

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.Unmarshal(body, &errResp)
		if msg, ok := errResp["message"].(string); ok {
			return nil, fmt.Errorf("API error: %s", msg)
		}
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode)
	}
	return body, nil
}

// apiPost performs an authenticated POST with an optional JSON payload.
func apiPost(path string, payload interface{}) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest("POST", apiURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+authToken)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.Unmarshal(body, &errResp)
		if msg, ok := errResp["message"].(string); ok {
			return nil, fmt.Errorf("API error: %s", msg)
		}
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode)
	}
	return body, nil
}
