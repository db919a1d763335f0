package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const serviceName = "flipbook"

const (
	axiomBuffer        = 1000
	axiomBatch         = 200
	axiomIngestTimeout = 15 * time.Second
)

// Options defines logger initialization parameters.
type Options struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// Axiom
	SendToAxiom   bool
	AxiomAPIKey   string
	AxiomOrgID    string
	AxiomDataset  string
	AxiomFlush    time.Duration
	AxiomMinLevel string // defaults to info

	// Extra writer, used by tests to capture output.
	Out io.Writer
}

var (
	global zerolog.Logger = zerolog.Nop()
	sink   *axiomSink
)

// Init sets up the global logger: file rotation, console or JSON stdout, optional Axiom forwarding.
func Init(opts Options) error {
	Close()

	writers, err := localWriters(opts)
	if err != nil {
		return err
	}
	if opts.SendToAxiom && opts.AxiomAPIKey != "" {
		s, err := newAxiomSink(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
		} else {
			sink = s
			writers = append(writers, s)
		}
	}

	zerolog.TimeFieldFormat = time.RFC3339
	global = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(parseLevel(opts.Level, zerolog.InfoLevel)).
		With().Timestamp().Str("service", serviceName).Logger()
	log.Logger = global
	return nil
}

func localWriters(opts Options) ([]io.Writer, error) {
	var writers []io.Writer
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("create logs dir: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		})
	}
	switch {
	case opts.Out != nil:
		writers = append(writers, opts.Out)
	case opts.Pretty:
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	default:
		writers = append(writers, os.Stdout)
	}
	return writers, nil
}

func parseLevel(s string, def zerolog.Level) zerolog.Level {
	if s == "" {
		return def
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return def
	}
	return lvl
}

// Close flushes any buffered external loggers.
func Close() {
	if sink != nil {
		_ = sink.Close()
		sink = nil
	}
}

// Get returns the global logger.
func Get() *zerolog.Logger { return &global }

// Component returns a child logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return log.Logger.With().Str("component", name).Logger()
}

// axiomSink is a zerolog.LevelWriter that batches events for Axiom ingestion.
// Events below min are skipped; a full buffer drops events.
type axiomSink struct {
	client  *axiom.Client
	dataset string
	min     zerolog.Level
	ch      chan axiom.Event
	dropped atomic.Int64

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func newAxiomSink(opts Options) (*axiomSink, error) {
	dataset := opts.AxiomDataset
	if dataset == "" {
		dataset = "dev_" + serviceName
	}
	co := []axiom.Option{axiom.SetToken(opts.AxiomAPIKey)}
	if opts.AxiomOrgID != "" {
		co = append(co, axiom.SetOrganizationID(opts.AxiomOrgID))
	}
	c, err := axiom.NewClient(co...)
	if err != nil {
		return nil, err
	}
	flush := opts.AxiomFlush
	if flush <= 0 {
		flush = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &axiomSink{
		client:  c,
		dataset: dataset,
		min:     parseLevel(opts.AxiomMinLevel, zerolog.InfoLevel),
		ch:      make(chan axiom.Event, axiomBuffer),
		cancel:  cancel,
	}
	s.wg.Add(1)
	go s.loop(ctx, flush, s.ingest)
	return s, nil
}

func (s *axiomSink) Write(p []byte) (int, error) {
	return s.WriteLevel(zerolog.NoLevel, p)
}

func (s *axiomSink) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l != zerolog.NoLevel && l < s.min {
		return len(p), nil
	}
	s.enqueue(toEvent(p))
	return len(p), nil
}

func (s *axiomSink) enqueue(ev axiom.Event) {
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the buffer was full.
func (s *axiomSink) Dropped() int64 { return s.dropped.Load() }

func toEvent(p []byte) axiom.Event {
	var ev map[string]any
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = map[string]any{"message": string(p), "level": "info"}
	}
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	return axiom.Event(ev)
}

func (s *axiomSink) ingest(batch []axiom.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), axiomIngestTimeout)
	defer cancel()
	if _, err := s.client.IngestEvents(ctx, s.dataset, batch); err != nil {
		fmt.Fprintf(os.Stderr, "axiom ingest: %v\n", err)
	}
}

// loop batches events and hands them to send on every tick, when a batch
// fills up and once more on shutdown.
func (s *axiomSink) loop(ctx context.Context, every time.Duration, send func([]axiom.Event)) {
	defer s.wg.Done()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	batch := make([]axiom.Event, 0, axiomBatch)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		send(batch)
		batch = make([]axiom.Event, 0, axiomBatch)
	}
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case ev := <-s.ch:
					batch = append(batch, ev)
				default:
					flush()
					return
				}
			}
		case <-ticker.C:
			flush()
		case ev := <-s.ch:
			batch = append(batch, ev)
			if len(batch) >= axiomBatch {
				flush()
			}
		}
	}
}

func (s *axiomSink) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}
