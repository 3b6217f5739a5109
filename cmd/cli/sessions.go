package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/meruscrap/pimapos/internal/database"
	"github.com/meruscrap/pimapos/internal/session"
	"github.com/spf13/cobra"
)

var sweepStale bool

// sessions talks to the database directly rather than the API: the whole
// point of the command is inspecting terminals other than the one serving
// the API, including ones that died without a teardown.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List active terminal sessions",
	Long: `List every active terminal session known to the backing store.
With --sweep, sessions whose heartbeat has gone stale are marked
inactive first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return listSessions()
	},
}

func init() {
	sessionsCmd.Flags().BoolVar(&sweepStale, "sweep", false, "Mark stale sessions inactive before listing")
}

func listSessions() error {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}
	if err := database.Initialize(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	if sweepStale {
		swept, err := session.SweepStale(database.DB)
		if err != nil {
			return fmt.Errorf("sweep failed: %w", err)
		}
		fmt.Printf("Swept %d stale session(s)\n", swept)
	}

	active, err := session.ListActive(database.DB)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if output == "json" {
		raw, err := json.MarshalIndent(active, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(raw))
		return nil
	}

	if len(active) == 0 {
		fmt.Println("No active sessions")
		return nil
	}

	fmt.Printf("%d active session(s):\n\n", len(active))
	for _, s := range active {
		fmt.Printf("  %s  user=%s  device=%s  last seen %s\n",
			s.ID, s.UserID, s.DeviceInfo,
			s.LastSeenAt.Local().Format("2006-01-02 15:04:05"),
		)
	}
	return nil
}
