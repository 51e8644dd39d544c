// Package processor applies an ordered event stream to the store, one
// atomic unit of work per event.
package processor

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"pabloScope/internal/model"
	"pabloScope/internal/normalize"
	"pabloScope/internal/observability"
	"pabloScope/internal/pablo"
	"pabloScope/internal/storage"
)

var ErrOutOfOrder = errors.New("event out of order")

// ErrorPolicy decides what happens when an event cannot be applied.
type ErrorPolicy string

const (
	PolicyHalt ErrorPolicy = "halt"
	PolicySkip ErrorPolicy = "skip"
)

func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(s) {
	case PolicyHalt, PolicySkip:
		return ErrorPolicy(s), nil
	case "":
		return PolicyHalt, nil
	default:
		return "", fmt.Errorf("unknown error policy %q", s)
	}
}

// Format is the shape of input lines.
type Format string

const (
	// FormatRaw lines are model.RawEventRecord values.
	FormatRaw Format = "raw"
	// FormatCanonical lines are model.NormalizedEvent values.
	FormatCanonical Format = "canonical"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatRaw, FormatCanonical:
		return Format(s), nil
	case "":
		return FormatRaw, nil
	default:
		return "", fmt.Errorf("unknown input format %q", s)
	}
}

const (
	stageParse     = "parse"
	stageNormalize = "normalize"
	stageApply     = "apply"
)

// PoolHandler applies Pablo events.
type PoolHandler interface {
	PoolCreated(ctx context.Context, tx storage.Tx, meta model.EventMeta, ev model.PoolCreated) error
	LiquidityAdded(ctx context.Context, tx storage.Tx, meta model.EventMeta, ev model.LiquidityAdded) error
	Swapped(ctx context.Context, tx storage.Tx, meta model.EventMeta, ev model.Swapped) error
}

// VestingHandler applies vesting events.
type VestingHandler interface {
	ScheduleAdded(ctx context.Context, tx storage.Tx, meta model.EventMeta, ev model.VestingScheduleAdded) error
}

// Config controls processing behavior.
type Config struct {
	// StateName keys the stored cursor.
	StateName    string
	Format       Format
	OnError      ErrorPolicy
	MaxRetries   int
	RetryBackoff time.Duration
	ErrorSink    storage.ErrorSink
	Metrics      *observability.Metrics
}

// Stats summarizes one Consume call.
type Stats struct {
	Total     int
	Processed int
	Skipped   int
	Failed    int
}

type Processor struct {
	cfg     Config
	store   storage.Store
	pools   PoolHandler
	vesting VestingHandler
	logger  *zap.Logger

	last   *model.Sequence
	cursor *model.Cursor
}

func New(cfg Config, store storage.Store, pools PoolHandler, vesting VestingHandler, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.StateName == "" {
		cfg.StateName = "pablo"
	}
	if cfg.Format == "" {
		cfg.Format = FormatRaw
	}
	if cfg.OnError == "" {
		cfg.OnError = PolicyHalt
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}

	return &Processor{
		cfg:     cfg,
		store:   store,
		pools:   pools,
		vesting: vesting,
		logger:  logger,
	}
}

// Run processes an events JSONL file.
func (p *Processor) Run(ctx context.Context, inputPath string) (Stats, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return Stats{}, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	return p.Consume(ctx, file)
}

// Consume applies every line of r in order. Events at or before the stored
// cursor are skipped, so a stream can be replayed after a restart.
func (p *Processor) Consume(ctx context.Context, r io.Reader) (Stats, error) {
	var stats Stats
	if p.store == nil {
		return stats, fmt.Errorf("store is nil")
	}
	if p.pools == nil || p.vesting == nil {
		return stats, fmt.Errorf("handlers are required")
	}

	if err := p.loadCursor(ctx); err != nil {
		return stats, err
	}

	p.logger.Info("process start",
		zap.String("state_name", p.cfg.StateName),
		zap.String("format", string(p.cfg.Format)),
		zap.String("on_error", string(p.cfg.OnError)),
		zap.Stringer("cursor", p.cursorSequence()),
	)

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Total++

		if err := p.processLine(ctx, line, lineNo, &stats); err != nil {
			p.logSummary("process halted", stats)
			return stats, err
		}
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}

	p.logSummary("process complete", stats)
	return stats, nil
}

// event is one input line resolved to a canonical payload.
type event struct {
	meta    model.EventMeta
	name    string
	version uint32
	payload model.Event
	err     error
}

func (p *Processor) processLine(ctx context.Context, line []byte, lineNo int, stats *Stats) error {
	ev, err := p.parse(line)
	if err != nil {
		return p.failParse(line, lineNo, err, stats)
	}
	if ev == nil {
		stats.Skipped++
		p.cfg.Metrics.RecordSkipped("unsupported")
		return nil
	}

	seq := ev.meta.Sequence()
	if p.last != nil && !seq.After(*p.last) {
		return fmt.Errorf("%w: event %s at %s after %s", ErrOutOfOrder, ev.meta.ID, seq, *p.last)
	}
	p.last = &seq

	if p.cursor != nil && !seq.After(p.cursor.Sequence) {
		stats.Skipped++
		p.cfg.Metrics.RecordSkipped("before_cursor")
		return nil
	}

	if ev.err != nil {
		return p.fail(ctx, ev, stageNormalize, ev.err, stats)
	}

	start := time.Now()
	err = p.withRetry(ctx, func(ctx context.Context) error {
		return p.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			if err := p.dispatch(ctx, tx, ev.meta, ev.payload); err != nil {
				return err
			}
			return tx.SaveCursor(ctx, p.cfg.StateName, p.cursorFor(ev.meta))
		})
	})
	if err != nil {
		return p.fail(ctx, ev, stageApply, err, stats)
	}

	p.advance(ev.meta)
	stats.Processed++
	p.cfg.Metrics.RecordProcessed(ev.name, ev.meta.BlockNumber, time.Since(start))
	return nil
}

// parse returns nil for events no handler consumes. Normalization failures
// are carried on the event so ordering is still checked.
func (p *Processor) parse(line []byte) (*event, error) {
	switch p.cfg.Format {
	case FormatCanonical:
		var record model.NormalizedEvent
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, err
		}
		return &event{
			meta:    record.EventMeta,
			name:    string(record.Kind),
			version: record.SpecVersion,
			payload: record.Payload,
		}, nil
	default:
		var record model.RawEventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, err
		}
		if !normalize.Supports(record.Name) {
			return nil, nil
		}
		payload, err := normalize.Event(record)
		return &event{
			meta:    record.Meta(),
			name:    record.Name,
			version: record.SpecVersion,
			payload: payload,
			err:     err,
		}, nil
	}
}

func (p *Processor) dispatch(ctx context.Context, tx storage.Tx, meta model.EventMeta, payload model.Event) error {
	switch ev := payload.(type) {
	case model.PoolCreated:
		return p.pools.PoolCreated(ctx, tx, meta, ev)
	case model.LiquidityAdded:
		return p.pools.LiquidityAdded(ctx, tx, meta, ev)
	case model.Swapped:
		return p.pools.Swapped(ctx, tx, meta, ev)
	case model.VestingScheduleAdded:
		return p.vesting.ScheduleAdded(ctx, tx, meta, ev)
	default:
		return fmt.Errorf("no handler for %T", payload)
	}
}

// fail applies the error policy. Store failures that outlived their retries
// always stop processing, since the cursor could not be saved either.
func (p *Processor) fail(ctx context.Context, ev *event, stage string, cause error, stats *Stats) error {
	stats.Failed++
	p.cfg.Metrics.RecordError(ev.name, stage)

	if p.cfg.OnError == PolicyHalt || storage.IsTransient(cause) || ctx.Err() != nil {
		return fmt.Errorf("%s event %s: %w", stage, ev.meta.ID, cause)
	}

	p.logger.Warn("skip failed event",
		zap.String("event_id", ev.meta.ID),
		zap.String("event", ev.name),
		zap.Uint64("block_number", ev.meta.BlockNumber),
		zap.String("stage", stage),
		zap.Error(cause),
	)

	if p.cfg.ErrorSink != nil {
		if err := p.cfg.ErrorSink.PutEventErrors([]model.EventError{eventError(ev, stage, cause)}); err != nil {
			return fmt.Errorf("store event error: %w", err)
		}
	}

	err := p.withRetry(ctx, func(ctx context.Context) error {
		return p.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.SaveCursor(ctx, p.cfg.StateName, p.cursorFor(ev.meta))
		})
	})
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	p.advance(ev.meta)
	return nil
}

// failParse handles a line that did not decode. The cursor stays put since
// the line's position in the stream is unknown.
func (p *Processor) failParse(line []byte, lineNo int, cause error, stats *Stats) error {
	stats.Failed++
	rec := lineError(line, lineNo, cause)
	p.cfg.Metrics.RecordError(rec.Name, stageParse)

	if p.cfg.OnError == PolicyHalt {
		return fmt.Errorf("parse event at line %d: %w", lineNo, cause)
	}

	p.logger.Warn("skip malformed line",
		zap.Int("line", lineNo),
		zap.String("event_id", rec.EventID),
		zap.Error(cause),
	)

	if p.cfg.ErrorSink != nil {
		if err := p.cfg.ErrorSink.PutEventErrors([]model.EventError{rec}); err != nil {
			return fmt.Errorf("store event error: %w", err)
		}
	}
	return nil
}

// lineError keeps whatever identifying fields of a bad line still decode.
func lineError(line []byte, lineNo int, cause error) model.EventError {
	var head struct {
		model.EventMeta
		Name        string `json:"name"`
		Kind        string `json:"kind"`
		SpecVersion uint32 `json:"spec_version"`
	}
	_ = json.Unmarshal(line, &head)

	name := head.Name
	if name == "" {
		name = head.Kind
	}
	return model.EventError{
		EventID:      head.ID,
		BlockNumber:  head.BlockNumber,
		IndexInBlock: head.IndexInBlock,
		Name:         name,
		SpecVersion:  head.SpecVersion,
		Stage:        stageParse,
		Error:        cause.Error(),
		Line:         lineNo,
	}
}

func eventError(ev *event, stage string, cause error) model.EventError {
	rec := model.EventError{
		EventID:      ev.meta.ID,
		BlockNumber:  ev.meta.BlockNumber,
		IndexInBlock: ev.meta.IndexInBlock,
		Name:         ev.name,
		SpecVersion:  ev.version,
		Stage:        stage,
		Error:        cause.Error(),
	}
	var herr *pablo.HandlerError
	if errors.As(cause, &herr) {
		rec.PoolID = herr.PoolID
	}
	return rec
}

func (p *Processor) withRetry(ctx context.Context, fn func(context.Context) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.cfg.RetryBackoff
	policy.MaxInterval = p.cfg.RetryBackoff * 10

	notify := func(err error, d time.Duration) {
		p.cfg.Metrics.RecordRetry()
		p.logger.Warn("retry store transaction", zap.Error(err), zap.Duration("backoff", d))
	}

	operation := func() (struct{}, error) {
		err := fn(ctx)
		if err != nil && !storage.IsTransient(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(p.cfg.MaxRetries+1)),
		backoff.WithNotify(notify))
	return err
}

func (p *Processor) loadCursor(ctx context.Context) error {
	var (
		cursor model.Cursor
		found  bool
	)
	err := p.withRetry(ctx, func(ctx context.Context) error {
		return p.store.RunInTx(ctx, func(ctx context.Context, tx storage.Tx) error {
			var err error
			cursor, found, err = tx.Cursor(ctx, p.cfg.StateName)
			return err
		})
	})
	if err != nil {
		return fmt.Errorf("load cursor: %w", err)
	}
	if found {
		p.cursor = &cursor
		p.logger.Info("resume from cursor",
			zap.String("event_id", cursor.EventID),
			zap.Stringer("sequence", cursor.Sequence),
		)
	}
	return nil
}

func (p *Processor) cursorFor(meta model.EventMeta) model.Cursor {
	return model.Cursor{Sequence: meta.Sequence(), EventID: meta.ID}
}

func (p *Processor) advance(meta model.EventMeta) {
	cursor := p.cursorFor(meta)
	p.cursor = &cursor
}

func (p *Processor) cursorSequence() model.Sequence {
	if p.cursor == nil {
		return model.Sequence{}
	}
	return p.cursor.Sequence
}

func (p *Processor) logSummary(msg string, stats Stats) {
	p.logger.Info(msg,
		zap.Int("total", stats.Total),
		zap.Int("processed", stats.Processed),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
}
