// metshield-watch tails the live scoring feed in a terminal.
//
// Usage:
//   go run cmd/metshield-watch/main.go -url http://localhost:8080
//
// The watcher follows the SSE feed, reconnecting with backoff when the
// server goes away, and rings a bell on deduplicated high risk alerts.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/metshield/metshield/internal/domain"
	"github.com/metshield/metshield/internal/feed"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "MetShield base URL")
	history := flag.Int("history", 50, "Local event history size")
	bell := flag.Bool("bell", true, "Ring the terminal bell on alerts")
	flag.Parse()

	feedURL := strings.TrimRight(*baseURL, "/") + "/api/v1/feed"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	transport := &sseTransport{
		url: feedURL,
		// No client timeout: the feed is a long-lived stream.
		client: &http.Client{},
	}

	sub := feed.NewReconnectingSubscriber(transport, feed.ReconnectOptions{
		HistorySize: *history,
		MaxBackoff:  30 * time.Second,
	})
	sub.Start(ctx)
	defer sub.Close()

	dedup := feed.NewDeduplicator()

	fmt.Printf("watching %s (ctrl-c to quit)\n\n", feedURL)
	fmt.Printf("%-24s %-14s %-10s %10s  %s\n", "TIME", "CLAIM", "RISK", "AMOUNT", "INDICATORS")

	for {
		select {
		case <-ctx.Done():
			printSummary(sub)
			return

		case event, open := <-sub.Events():
			if !open {
				printSummary(sub)
				return
			}
			printEvent(event, dedup, *bell)
		}
	}
}

func printEvent(event *domain.FeedEvent, dedup *feed.Deduplicator, bell bool) {
	// Rebuild enough of the scored claim for session-local dedup; the
	// server's alert flag belongs to its own connection, not ours.
	alert := dedup.ShouldAlert(&domain.ScoredClaim{
		Claim: &domain.Claim{ID: event.ClaimID},
		Tier:  event.Tier,
	})

	marker := " "
	if alert {
		marker = "!"
		if bell {
			fmt.Print("\a")
		}
	}

	fmt.Printf("%s %-22s %-14s %-10s %10.2f  %s\n",
		marker,
		event.Timestamp.Local().Format("2006-01-02 15:04:05"),
		event.ClaimID,
		event.Tier,
		event.Amount,
		strings.Join(event.Indicators, ","),
	)
}

func printSummary(sub *feed.ReconnectingSubscriber) {
	fmt.Printf("\nfeed closed: %d events in history, %d reconnects, %d unparseable payloads\n",
		len(sub.History()), sub.Reconnects(), sub.ParseErrors())
}

// sseTransport connects to the MetShield SSE feed endpoint.
type sseTransport struct {
	url    string
	client *http.Client
}

func (t *sseTransport) Connect(ctx context.Context) (feed.Stream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	return &sseStream{
		body:   resp.Body,
		reader: bufio.NewReader(resp.Body),
	}, nil
}

// sseStream yields the data payload of each SSE event. Comment lines
// (heartbeats) and blank separators are skipped.
type sseStream struct {
	body   interface{ Close() error }
	reader *bufio.Reader
}

func (s *sseStream) Recv() ([]byte, error) {
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)
		if data, ok := strings.CutPrefix(line, "data: "); ok {
			return []byte(data), nil
		}
	}
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
