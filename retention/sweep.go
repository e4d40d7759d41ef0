// Package retention deletes old messages on a timer. Unpinned messages only
// live for a few hours; image files go with their rows.
package retention

import (
	"fmt"
	"log"
	"sync"
	"time"

	"chathub/channels"
	"chathub/types"
	"chathub/uploads"
)

const (
	DefaultMaxAge   = 3 * time.Hour
	DefaultInterval = time.Hour
)

type Sweeper struct {
	Channels *channels.Store
	Files    *uploads.Store
	MaxAge   time.Duration
	Interval time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// Start launches the sweep loop. Starting a sweeper that is already running
// is an error; at most one timer exists per sweeper.
func (s *Sweeper) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("retention sweeper already running")
	}
	if s.MaxAge == 0 {
		s.MaxAge = DefaultMaxAge
	}
	if s.Interval == 0 {
		s.Interval = DefaultInterval
	}
	s.running = true
	s.stop = make(chan struct{})

	go func(stop chan struct{}) {
		ticker := time.NewTicker(s.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Sweep(time.Now().UTC())
			case <-stop:
				return
			}
		}
	}(s.stop)

	return nil
}

func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	close(s.stop)
	s.running = false
}

// Sweep deletes unpinned messages older than MaxAge and removes the files
// behind expired image messages. File removal failures are logged and do not
// block the row deletes.
func (s *Sweeper) Sweep(now time.Time) {
	cutoff := now.Add(-s.MaxAge)

	expired, err := s.Channels.ExpiredMessages(cutoff)
	if err != nil {
		log.Println("retention: listing expired messages:", err)
		return
	}
	for _, msg := range expired {
		if msg.MessageType != types.MessageImage {
			continue
		}
		if err := s.Files.Remove(msg.Body); err != nil {
			log.Println("retention: removing file:", err)
		}
	}

	deleted, err := s.Channels.DeleteExpiredMessages(cutoff)
	if err != nil {
		log.Println("retention: deleting expired messages:", err)
		return
	}
	if deleted > 0 {
		log.Printf("retention: deleted %d expired messages", deleted)
	}
}
