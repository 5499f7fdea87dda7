package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/restsend/chatkit/model"
	"github.com/restsend/chatkit/observer"
)

// connectSignal reports the first OnConnected through a channel, so the
// send command knows when it's safe to enroll a message.
type connectSignal struct {
	observer.NoOp
	connected chan struct{}
	once      bool
}

func (s *connectSignal) OnConnected() {
	if !s.once {
		s.once = true
		close(s.connected)
	}
}

// messageWaiter blocks until the one message it's attached to is acked or
// fails, so the demo CLI can print a result before exiting.
type messageWaiter struct {
	result chan error
}

func (w *messageWaiter) OnSent()                     {}
func (w *messageWaiter) OnAck(req model.ChatRequest) { w.result <- nil }
func (w *messageWaiter) OnFail(reason string)        { w.result <- fmt.Errorf("%s", reason) }

func cmdSend() *cobra.Command {
	var topic, text string
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Connect, send one text message, and wait for the server ack",
		RunE: func(cmd *cobra.Command, args []string) error {
			if topic == "" || text == "" {
				return fmt.Errorf("--topic and --text are required")
			}

			obs := &connectSignal{connected: make(chan struct{})}
			client, err := newClientFromFlags(cmd, obs)
			if err != nil {
				return err
			}
			defer client.Shutdown()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			go client.Connect(ctx)

			select {
			case <-obs.connected:
			case <-ctx.Done():
				return fmt.Errorf("timed out waiting to connect")
			}

			waiter := &messageWaiter{result: make(chan error, 1)}
			client.SendText(topic, text, nil, "", waiter)

			select {
			case err := <-waiter.result:
				if err != nil {
					return fmt.Errorf("send failed: %w", err)
				}
				fmt.Println("sent")
				return nil
			case <-ctx.Done():
				return fmt.Errorf("timed out waiting for ack")
			}
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "topic id")
	cmd.Flags().StringVar(&text, "text", "", "message text")
	return cmd
}
