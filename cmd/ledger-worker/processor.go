package main

import (
	"context"
	"log/slog"
	"sync"

	"cepbridge/internal/consumer"
	"cepbridge/internal/metrics"
	"cepbridge/internal/submitter"
)

// processAlerts reads ledger alerts and submits them concurrently through a
// bounded worker pool. Each alert is an independent unit of work: a terminal
// submission failure is logged and the loop moves on.
func processAlerts(ctx context.Context, kafkaConsumer *consumer.Consumer, sub *submitter.Submitter, workers int, m metrics.Recorder) error {
	slog.Info("Starting alert submission loop", "workers", workers)

	jobs := make(chan []byte, workers*2)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go runWorker(ctx, sub, jobs, &wg, m)
	}

	dispatchAlerts(ctx, kafkaConsumer, jobs, m)

	close(jobs)
	wg.Wait()
	slog.Info("Alert submission loop stopped")
	return nil
}

// dispatchAlerts reads raw alert payloads and hands them to the workers.
// The jobs channel is bounded, so a burst of alerts backpressures the read
// loop instead of growing memory.
func dispatchAlerts(ctx context.Context, kafkaConsumer *consumer.Consumer, jobs chan<- []byte, m metrics.Recorder) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			raw, err := kafkaConsumer.ReadRaw(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("Failed to read ledger alert", "error", err)
				m.RecordError()
				continue
			}
			m.RecordReceived()
			jobs <- raw
		}
	}
}

func runWorker(ctx context.Context, sub *submitter.Submitter, jobs <-chan []byte, wg *sync.WaitGroup, m metrics.Recorder) {
	defer wg.Done()
	for raw := range jobs {
		if _, err := sub.Execute(ctx, raw); err != nil {
			slog.Error("Alert submission failed", "error", err)
			m.RecordError()
			continue
		}
		m.RecordProcessed()
	}
}
