package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shashiranjanraj/ferremas/config"
	"github.com/shashiranjanraj/ferremas/pkg/event"
	"github.com/shashiranjanraj/ferremas/pkg/logger"
)

var (
	queueWorkersFlag int
	scheduleNowFlag  string
	consumeGroupFlag string
)

// ferremas queue:work
var queueWorkCmd = &cobra.Command{
	Use:   "queue:work",
	Short: "Run queue workers (stock reposition retries, mail)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		workers := max(queueWorkersFlag, 1)
		fmt.Printf("Queue worker started (%d workers). Press Ctrl+C to stop.\n", workers)
		err = a.Queue.Work(ctx, workers)
		fmt.Println("Queue worker stopped.")
		return err
	},
}

// ferremas schedule:run
var scheduleRunCmd = &cobra.Command{
	Use:   "schedule:run",
	Short: "Run the task scheduler, or one task with --now",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if scheduleNowFlag != "" {
			return a.Scheduler.RunNow(ctx, scheduleNowFlag)
		}

		fmt.Println("Registered scheduled tasks:")
		for _, t := range a.Scheduler.List() {
			fmt.Println("  •", t)
		}
		fmt.Println("Scheduler started. Press Ctrl+C to stop.")
		return a.Scheduler.Start(ctx)
	},
}

// ferremas rates:sync
var ratesSyncCmd = &cobra.Command{
	Use:   "rates:sync",
	Short: "Fetch today's exchange rates from mindicador",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		a, err := boot(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.Services.Currency.Sync(ctx)
		fmt.Printf("Stored %d rate(s).\n", n)
		return err
	},
}

// ferremas events:consume tails the event topic and logs every message.
// It uses its own bus so consumed events are never published again.
var eventsConsumeCmd = &cobra.Command{
	Use:   "events:consume",
	Short: "Tail the Kafka event topic",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		if err := config.Load(); err != nil {
			return err
		}
		brokers := config.KafkaBrokers()
		if len(brokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is not set")
		}

		bus := event.NewBus()
		bus.ListenAll(func(ctx context.Context, e event.Event) {
			logger.WithCtx(ctx).Info("events: received", "event", e.Name, "payload", e.Payload)
		})
		return event.Consume(ctx, brokers, config.KafkaTopic(), consumeGroupFlag, bus)
	},
}

func init() {
	queueWorkCmd.Flags().IntVarP(&queueWorkersFlag, "workers", "w", 4, "Number of concurrent workers")
	scheduleRunCmd.Flags().StringVar(&scheduleNowFlag, "now", "", "Run one task immediately and exit")
	eventsConsumeCmd.Flags().StringVar(&consumeGroupFlag, "group", "ferremas-tail", "Kafka consumer group id")
}
