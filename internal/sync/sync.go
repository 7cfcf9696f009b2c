package sync

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/canvas/internal/store"
)

// Destination is the interface for a sync target (S3, git, etc.).
type Destination interface {
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// Source is a destination that can hand back the last export it stored.
type Source interface {
	Read(ctx context.Context) ([]byte, error)
}

// Scheduler runs periodic dashboard exports to one or more destinations.
// A destination is only written when the exported dashboards differ from
// what it last accepted; the header timestamp does not count as a change.
type Scheduler struct {
	store        store.Store
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	current [][sha256.Size]byte // per destination, digest of the last accepted body

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports from the store to the given
// destinations at the specified interval.
func NewScheduler(s store.Store, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:        s,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
		current:      make([][sha256.Size]byte, len(destinations)),
	}
}

// Start begins periodic sync. It runs an initial sync immediately, then
// on each tick.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current sync (if any) to finish.
// A final sync runs so that every destination holds the dashboards as they
// were at shutdown.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.SyncNow(ctx); err != nil {
		s.logger.Error("final sync failed", "err", err)
	}
}

func (s *Scheduler) run(ctx context.Context) {
	if err := s.SyncNow(ctx); err != nil {
		s.logger.Error("sync failed", "err", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SyncNow(ctx); err != nil {
				s.logger.Error("sync failed", "err", err)
			}
		}
	}
}

// SyncNow exports once and writes the result to every destination that
// does not already hold it. A failed destination does not stop the others
// and is retried on the next sync; the first failure is returned.
func (s *Scheduler) SyncNow(ctx context.Context) error {
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, s.store, &buf); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	data := buf.Bytes()
	digest := bodyDigest(data)

	s.mu.Lock()
	defer s.mu.Unlock()

	var first error
	written := 0
	for i, dest := range s.destinations {
		if s.current[i] == digest {
			continue
		}
		if err := dest.Write(ctx, data); err != nil {
			s.logger.Error("sync destination write failed", "destination", destinationName(i, dest), "err", err)
			if first == nil {
				first = fmt.Errorf("destination %s: %w", destinationName(i, dest), err)
			}
			continue
		}
		s.current[i] = digest
		written++
	}

	if written == 0 && first == nil {
		s.logger.Debug("sync skipped, dashboards unchanged")
		return nil
	}
	s.logger.Info("sync completed", "destinations", written, "bytes", len(data))
	return first
}

// bodyDigest hashes an export without its header line.
func bodyDigest(data []byte) [sha256.Size]byte {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		data = data[i+1:]
	}
	return sha256.Sum256(data)
}

func destinationName(i int, d Destination) string {
	if s, ok := d.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("#%d", i)
}
