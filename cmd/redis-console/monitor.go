package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"redisx"
)

func newMonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Stream every command the server executes, like redis-cli --monitor",
		RunE:  runMonitor,
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := redisx.Dial(ctx, uri)
	if err != nil {
		return err
	}
	defer client.Close()

	stream, err := client.Monitor(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	for {
		ev, err := stream.Receive(ctx)
		if err != nil {
			return nil
		}
		fmt.Printf("%d [%d %s] %s\n", ev.UnixTimeMs, ev.Database, ev.PeerAddr, joinArgv(ev.Argv))
	}
}

func joinArgv(argv []string) string {
	out := ""
	for i, a := range argv {
		if i > 0 {
			out += " "
		}
		out += "\"" + a + "\""
	}
	return out
}
