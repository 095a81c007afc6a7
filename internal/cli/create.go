package cli

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/im-anant/streeem/internal/config"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new room and print its id",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{Server: flagServer, STUNServer: flagSTUN})
		if err != nil {
			return err
		}

		resp, err := http.Post(cfg.ServerURL+"/api/rooms", "application/json", nil)
		if err != nil {
			return fmt.Errorf("create room: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("create room: unexpected status %d", resp.StatusCode)
		}

		var body struct {
			RoomID string `json:"roomId"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("create room: %w", err)
		}

		fmt.Println(body.RoomID)
		return nil
	},
}
