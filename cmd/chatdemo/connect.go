package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/restsend/chatkit"
	"github.com/restsend/chatkit/config"
	"github.com/restsend/chatkit/model"
	"github.com/restsend/chatkit/observer"
)

// logObserver prints every Observer event to stdout, the demo's stand-in
// for wiring events into a real UI.
type logObserver struct {
	observer.NoOp
}

func (logObserver) OnConnecting() { fmt.Println("connecting...") }
func (logObserver) OnConnected()  { fmt.Println("connected") }
func (logObserver) OnConnectionBroken(reason string) {
	fmt.Printf("connection broken: %s\n", reason)
}
func (logObserver) OnKickoff(reason string) { fmt.Printf("kicked off: %s\n", reason) }
func (logObserver) OnNewMessage(topicID string, log model.ChatLog) bool {
	fmt.Printf("[%s] %s: %s\n", topicID, log.SenderID, log.Content.Text)
	return false
}
func (logObserver) OnTopicTyping(topicID, userID string) {
	fmt.Printf("[%s] %s is typing\n", topicID, userID)
}

func cmdConnect() *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Connect and print incoming events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClientFromFlags(cmd, logObserver{})
			if err != nil {
				return err
			}
			defer client.Shutdown()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client.Connect(ctx)
			return nil
		},
	}
}

func newClientFromFlags(cmd *cobra.Command, obs observer.Observer) (*chatkit.Client, error) {
	endpoint, _ := cmd.Flags().GetString("endpoint")
	userID, _ := cmd.Flags().GetString("user")
	token, _ := cmd.Flags().GetString("token")
	root, _ := cmd.Flags().GetString("root")
	db, _ := cmd.Flags().GetString("db")
	if userID == "" || token == "" {
		return nil, fmt.Errorf("--user and --token are required (run 'login' first)")
	}

	auth := model.AuthInfo{Endpoint: endpoint, UserID: userID, Token: token}
	return chatkit.New(root, db, auth, obs, config.DefaultConfig())
}
