package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"meetrelay/internal/core/domain"
	"meetrelay/internal/peer"
	"meetrelay/pkg/config"

	"github.com/spf13/cobra"
)

var (
	flagName         string
	flagSTUN         []string
	flagWSPath       string
	flagGreeting     string
	flagReofferDelay time.Duration
)

var joinCmd = &cobra.Command{
	Use:   "join MEETING",
	Short: "Join a meeting and open a data channel with the other peer",
	Long: `Join a meeting as a peer. The peer whose name matches the meeting's host
name offers; everyone else answers. Once the data channel opens the greeting
is sent and every received message is printed until interrupted.

Examples:
  meetpeer join abc123XYZ_-q --name Alice
  meetpeer join abc123XYZ_-q --name Bob --stun stun:stun.l.google.com:19302`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyConfigDefaults(cmd); err != nil {
			return err
		}
		return joinMeeting(cmd.Context(), domain.MeetingID(args[0]))
	},
}

func init() {
	joinCmd.Flags().StringVar(&flagName, "name", "", "display name")
	joinCmd.Flags().StringSliceVar(&flagSTUN, "stun", nil, "STUN/TURN server URLs")
	joinCmd.Flags().StringVar(&flagWSPath, "ws-path", "/ws", "signaling endpoint path")
	joinCmd.Flags().StringVar(&flagGreeting, "greeting", "", "message sent when the channel opens (default \"hello from NAME\")")
	joinCmd.Flags().DurationVar(&flagReofferDelay, "reoffer-delay", peer.DefaultReofferDelay, "host re-offer delay after a disconnect")
	_ = joinCmd.MarkFlagRequired("name")
}

// applyConfigDefaults lets a relay config file supply the signal path and
// re-offer delay unless they were given on the command line.
func applyConfigDefaults(cmd *cobra.Command) error {
	if flagConfig == "" {
		return nil
	}
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("ws-path") {
		flagWSPath = cfg.Signal.Path
	}
	if !cmd.Flags().Changed("reoffer-delay") {
		flagReofferDelay = cfg.Signal.ReofferDelay
	}
	return nil
}

func joinMeeting(ctx context.Context, meetingID domain.MeetingID) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	wsURL, err := signalURL(flagServer, flagWSPath)
	if err != nil {
		return err
	}

	sig, err := peer.DialSignal(ctx, wsURL, log)
	if err != nil {
		return err
	}
	defer sig.Close()

	session, err := peer.NewSession(ctx, peer.NewDirectoryClient(flagServer, nil), sig, peer.SessionConfig{
		MeetingID:    meetingID,
		DisplayName:  flagName,
		ICEServers:   flagSTUN,
		ReofferDelay: flagReofferDelay,
	}, log)
	if err != nil {
		return err
	}
	defer session.Close()

	log.Infow("joining meeting", "meeting_id", meetingID, "role", session.Role(), "conn_id", sig.ID())

	runErr := make(chan error, 1)
	go func() { runErr <- session.Run(ctx) }()

	greeting := flagGreeting
	if greeting == "" {
		greeting = "hello from " + flagName
	}

	opened := session.Opened()
	for {
		select {
		case err := <-runErr:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err

		case <-opened:
			opened = nil
			if err := session.Send(greeting); err != nil {
				log.Warnw("failed to send greeting", "error", err)
			}

		case msg := <-session.Messages():
			fmt.Println(msg)
		}
	}
}
