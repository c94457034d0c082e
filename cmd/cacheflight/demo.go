package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/itsneelabh/cacheflight/cache"
	"github.com/itsneelabh/cacheflight/telemetry"
)

func demoCmd() *cobra.Command {
	var (
		conn connectOptions
		keys int
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a short workload against a traced cache and summarise its events",
		Long: "Run a short workload against a traced cache and summarise its events.\n\n" +
			"Use --embedded to run against an in-process Redis instead of --redis-url.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if keys < 0 {
				return fmt.Errorf("--keys must not be negative")
			}
			return runDemo(cmd.Context(), cmd.OutOrStdout(), conn, keys)
		},
	}

	conn.register(cmd)
	cmd.Flags().IntVar(&keys, "keys", 3, "number of keys in the batch operations")

	return cmd
}

func runDemo(ctx context.Context, out io.Writer, conn connectOptions, keys int) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, out, conn)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	spanCtx, span := a.providers.Tracer().Start(ctx, "cacheflight.demo")
	werr := runWorkload(spanCtx, a.cache, keys)
	telemetry.RecordSpanError(spanCtx, werr)
	span.End()
	if werr != nil {
		return werr
	}

	return printSummary(out, a.memory.Events(), a.sink.Health())
}

// runWorkload exercises single, batch and async operations once each.
func runWorkload(ctx context.Context, c cache.RemoteCache[string], keys int) error {
	key := "order-" + uuid.NewString()
	if _, _, err := c.Put(ctx, key, "pending"); err != nil {
		return err
	}
	if _, _, err := c.Get(ctx, key); err != nil {
		return err
	}

	batch := make(map[string]string, keys)
	names := make([]string, 0, keys)
	for i := 0; i < keys; i++ {
		k := "item-" + uuid.NewString()
		batch[k] = fmt.Sprintf("qty=%d", i+1)
		names = append(names, k)
	}
	if err := c.PutAll(ctx, batch); err != nil {
		return err
	}
	if _, err := c.GetAll(ctx, names); err != nil {
		return err
	}

	if _, err := c.PutAsync(ctx, key, "shipped").Await(ctx); err != nil {
		return err
	}
	if _, _, err := c.Remove(ctx, key); err != nil {
		return err
	}
	return nil
}

func printSummary(out io.Writer, events []telemetry.Event, health telemetry.Health) error {
	_, _ = fmt.Fprintf(out, "%d cache events\n", len(events))
	for _, ev := range events {
		line := fmt.Sprintf("%-6s %-8s cache=%s cluster=%s trace=%s span=%s",
			ev.Kind, ev.Method, ev.CacheName, ev.ClusterName, ev.TraceID, ev.SpanID)
		if ev.Batch {
			line += fmt.Sprintf(" elementCount=%d", ev.ElementCount)
		}
		switch ev.Kind {
		case telemetry.KindPeriod:
			line += fmt.Sprintf(" duration=%s", ev.Duration)
		case telemetry.KindEnd:
			line += fmt.Sprintf(" outcome=%s", ev.Outcome)
		}
		_, _ = fmt.Fprintln(out, line)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(health)
}
