// Package retention archives blobs that have not been modified for a while.
//
// A sweep lists the working store, archives every blob older than MaxAge
// and broadcasts TopicArchived with the fileId and its age in seconds.
package retention

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"bridgekit/internal/eventbus"
	"bridgekit/internal/storage"
	logx "bridgekit/pkg/logx"
)

const (
	TopicArchived = "storage.archived"

	DefaultSchedule = "@hourly"
	DefaultMaxAge   = 7 * 24 * time.Hour
)

var ErrNotAged = errors.New("retention: store does not report modification times")

type Config struct {
	Enabled  bool
	Schedule string
	MaxAge   time.Duration
	Timezone string
}

// Result summarizes one sweep.
type Result struct {
	Scanned  int
	Archived []string
	Failed   int
}

type Service struct {
	store storage.Store
	aged  storage.Aged
	bus   *eventbus.Bus
	log   logx.Logger
	now   func() time.Time

	parser cron.Parser

	mu      sync.Mutex
	cfg     Config
	c       *cron.Cron
	entryID cron.EntryID
	running bool
	sweepMu sync.Mutex
}

// New creates the service. bus may be nil (no notifications).
// The store must implement storage.Aged.
func New(cfg Config, store storage.Store, bus *eventbus.Bus, log logx.Logger) (*Service, error) {
	aged, ok := store.(storage.Aged)
	if !ok {
		return nil, ErrNotAged
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if bus != nil {
		bus.Define(TopicArchived)
	}
	return &Service{
		store: store,
		aged:  aged,
		bus:   bus,
		log:   log,
		now:   time.Now,
		cfg:   normalize(cfg),
		// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}, nil
}

func normalize(cfg Config) Config {
	cfg.Schedule = strings.TrimSpace(cfg.Schedule)
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	cfg.Timezone = strings.TrimSpace(cfg.Timezone)
	return cfg
}

// Validate reports whether the schedule parses.
func (s *Service) Validate(cfg Config) error {
	_, err := s.parser.Parse(normalize(cfg).Schedule)
	return err
}

func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Start begins cron triggering when enabled. Calling Start twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	s.running = true
	return s.startLocked()
}

func (s *Service) startLocked() error {
	if !s.cfg.Enabled {
		s.log.Debug("retention disabled")
		return nil
	}
	loc := s.loadLocationLocked()
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(loc))
	id, err := c.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.SweepOnce(context.Background()); err != nil {
			s.log.Warn("retention sweep failed", logx.Err(err))
		}
	})
	if err != nil {
		return err
	}
	s.c = c
	s.entryID = id
	c.Start()
	s.log.Info("retention started",
		logx.String("schedule", s.cfg.Schedule),
		logx.Duration("max_age", s.cfg.MaxAge),
		logx.String("tz", loc.String()),
	)
	return nil
}

func (s *Service) loadLocationLocked() *time.Location {
	if s.cfg.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.cfg.Timezone)
	if err != nil {
		s.log.Warn("invalid timezone; using local", logx.String("tz", s.cfg.Timezone), logx.Err(err))
		return time.Local
	}
	return loc
}

func (s *Service) stopLocked() {
	if s.c == nil {
		return
	}
	<-s.c.Stop().Done()
	s.c = nil
	s.entryID = 0
}

// Stop halts triggering and waits for a running sweep to finish.
func (s *Service) Stop(ctx context.Context) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.running = false
}

// Apply swaps the config, restarting cron when the service is running.
func (s *Service) Apply(cfg Config) error {
	cfg = normalize(cfg)
	if cfg.Enabled {
		if err := s.Validate(cfg); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == cfg {
		return nil
	}
	s.cfg = cfg
	if !s.running {
		return nil
	}
	s.stopLocked()
	return s.startLocked()
}

// NextRun returns the next scheduled sweep, if any.
func (s *Service) NextRun() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}, false
	}
	e := s.c.Entry(s.entryID)
	if !e.Valid() {
		return time.Time{}, false
	}
	return e.Next, true
}

// SweepOnce archives every blob older than MaxAge. Concurrent sweeps are serialized.
func (s *Service) SweepOnce(ctx context.Context) (Result, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	maxAge := s.Config().MaxAge
	files, err := s.store.ListFiles()
	if err != nil {
		return Result{}, err
	}

	res := Result{Scanned: len(files)}
	now := s.now()
	for _, id := range files {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		mt, err := s.aged.ModTime(id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			res.Failed++
			s.log.Warn("retention stat failed", logx.String("file_id", id), logx.Err(err))
			continue
		}
		age := now.Sub(mt)
		if age < maxAge {
			continue
		}
		ok, err := s.store.Archive(id)
		if err != nil {
			res.Failed++
			s.log.Warn("retention archive failed", logx.String("file_id", id), logx.Err(err))
			continue
		}
		if !ok {
			continue
		}
		res.Archived = append(res.Archived, id)
		s.log.Info("blob archived by retention", logx.String("file_id", id), logx.Duration("age", age))
		if s.bus != nil {
			_ = s.bus.Broadcast(TopicArchived, eventbus.Str(id), eventbus.Int(int64(age/time.Second)))
		}
	}
	return res, nil
}
