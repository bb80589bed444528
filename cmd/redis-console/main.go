// redis-console is a minimal interactive client for exercising redisx:
// connect to one server, send commands line by line, print replies.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"redisx"
	"redisx/internal/logx"
	"redisx/resp"
)

var (
	uri        string
	logLevel   string
	cmdTimeout time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "redis-console",
		Short: "Interactive console for a redisx connection",
		RunE:  run,
	}
	root.PersistentFlags().StringVar(&uri, "uri", "redis://127.0.0.1:6379", "connection URI (redis:// or rediss://)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug|info|warn|error")
	root.PersistentFlags().DurationVar(&cmdTimeout, "timeout", 5*time.Second, "per-command timeout")

	root.AddCommand(newMonitorCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logx.SetLevel(logLevel)
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()
	client, err := redisx.Dial(ctx, uri)
	if err != nil {
		return err
	}
	defer client.Close()

	if len(args) > 0 {
		return sendOne(client, args)
	}
	return repl(client)
}

func sendOne(client *redisx.Client, fields []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()
	r, err := client.Send(ctx, toCommand(fields))
	if err != nil {
		fmt.Fprintln(os.Stderr, "(error)", err)
		return nil
	}
	printResponse(r)
	return nil
}

func repl(client *redisx.Client) error {
	fmt.Fprintln(os.Stdout, "connected; type commands, Ctrl-D to quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stdout, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
		r, err := client.Send(ctx, toCommand(fields))
		cancel()
		if err != nil {
			fmt.Fprintln(os.Stdout, "(error)", err)
			continue
		}
		printResponse(r)
	}
}

func toCommand(fields []string) resp.Command {
	args := make([]any, len(fields)-1)
	for i, f := range fields[1:] {
		args[i] = f
	}
	return resp.NewCommand(fields[0], args...)
}

func printResponse(r resp.Response) {
	switch r.Kind() {
	case resp.KindNull:
		fmt.Fprintln(os.Stdout, "(nil)")
	case resp.KindArray, resp.KindSet, resp.KindPush:
		el, err := r.Elements()
		if err != nil {
			fmt.Fprintln(os.Stdout, "(error)", err)
			return
		}
		for i, e := range el {
			fmt.Fprintf(os.Stdout, "%d) %s\n", i+1, formatScalar(e))
		}
	case resp.KindMap:
		pairs, err := r.Pairs()
		if err != nil {
			fmt.Fprintln(os.Stdout, "(error)", err)
			return
		}
		for i := 0; i+1 < len(pairs); i += 2 {
			fmt.Fprintf(os.Stdout, "%s => %s\n", formatScalar(pairs[i]), formatScalar(pairs[i+1]))
		}
	default:
		fmt.Fprintln(os.Stdout, formatScalar(r))
	}
}

func formatScalar(r resp.Response) string {
	switch r.Kind() {
	case resp.KindInteger:
		v, _ := r.AsInt64()
		return fmt.Sprintf("(integer) %d", v)
	case resp.KindDouble:
		v, _ := r.AsFloat64()
		return fmt.Sprintf("%g", v)
	case resp.KindBoolean:
		v, _ := r.AsBool()
		return fmt.Sprintf("%t", v)
	case resp.KindNull:
		return "(nil)"
	default:
		return r.AsString()
	}
}
