package cli

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/im-anant/streeem/internal/config"
	"github.com/im-anant/streeem/internal/watch"
)

var (
	flagRoom string
	flagUser string
	flagName string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Join a room and keep playback in sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{Server: flagServer, STUNServer: flagSTUN})
		if err != nil {
			return err
		}

		userID := flagUser
		if userID == "" {
			userID = uuid.NewString()
		}
		displayName := flagName
		if displayName == "" {
			displayName = userID[:8]
		}

		session, err := watch.NewSession(cfg, flagRoom, userID, displayName)
		if err != nil {
			return err
		}
		defer session.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		errCh := make(chan error, 1)
		go func() { errCh <- session.Run(ctx) }()
		go commandLoop(session, stop)

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return nil
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&flagRoom, "room", "", "room id to join")
	watchCmd.Flags().StringVar(&flagUser, "user", "", "user identity (random when omitted)")
	watchCmd.Flags().StringVar(&flagName, "name", "", "display name")
	watchCmd.MarkFlagRequired("room")
}

// commandLoop reads slash commands from stdin and drives the session.
func commandLoop(session *watch.Session, stop func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cmd, rest, _ := strings.Cut(line, " ")

		var err error
		switch cmd {
		case "/play":
			err = session.Play()
		case "/pause":
			err = session.Pause()
		case "/seek":
			var pos float64
			if pos, err = strconv.ParseFloat(rest, 64); err == nil {
				err = session.Seek(pos)
			}
		case "/content":
			err = session.SetContent(rest)
		case "/say":
			err = session.SendChat(rest)
		case "/react":
			err = session.React(rest)
		case "/name":
			err = session.SetDisplayName(rest)
		case "/status":
			p := session.Player()
			fmt.Printf("content=%s playing=%v position=%.1fs\n",
				p.ContentID(), p.Playing(), p.Position())
		case "/quit":
			stop()
			return
		default:
			fmt.Println("commands: /play /pause /seek <sec> /content <id> /say <text> /react <emoji> /name <name> /status /quit")
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
}
