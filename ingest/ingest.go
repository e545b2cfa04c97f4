// Package ingest loads delimited text records into a key-value table.
//
// Each record contributes one pair: the key is a single trimmed field and the
// value is a set of trimmed fields joined by a separator. Records with too few
// fields are logged and skipped without stopping the load.
package ingest

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Sink receives the pairs extracted from records.
type Sink interface {
	Insert(key, value string) error
}

// BlankKeyPolicy decides what happens to records whose key field is blank.
type BlankKeyPolicy int

const (
	// BlankKeyAccept inserts the record under the empty key and logs a
	// warning.
	BlankKeyAccept BlankKeyPolicy = iota
	// BlankKeyReject logs a warning and skips the record.
	BlankKeyReject
)

func (p BlankKeyPolicy) String() string {
	switch p {
	case BlankKeyAccept:
		return "accept"
	case BlankKeyReject:
		return "reject"
	default:
		return fmt.Sprintf("BlankKeyPolicy(%d)", int(p))
	}
}

// MarshalText encodes the policy as "accept" or "reject".
func (p BlankKeyPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses "accept" or "reject", ignoring case.
func (p *BlankKeyPolicy) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "accept":
		*p = BlankKeyAccept
	case "reject":
		*p = BlankKeyReject
	default:
		return fmt.Errorf("unknown blank key policy %q", text)
	}
	return nil
}

// Options controls how records are split into pairs.
type Options struct {
	// Comma is the field delimiter.
	Comma rune
	// KeyField is the zero-based index of the key field.
	KeyField int
	// ValueFields are the indexes of the fields joined into the value.
	ValueFields []int
	// ValueSeparator joins the value fields.
	ValueSeparator string
	// MinFields is the minimum number of fields a record needs. It is
	// raised to cover KeyField and ValueFields.
	MinFields int
	// SkipHeader drops the first record of every input.
	SkipHeader bool
	BlankKeys  BlankKeyPolicy
	// Workers bounds the number of files LoadFiles reads at once.
	Workers int
	Logger  *zap.Logger
}

// DefaultOptions reads contact exports: the key is the ninth column and the
// value is the first two columns joined by a space.
func DefaultOptions() Options {
	return Options{
		Comma:          ',',
		KeyField:       8,
		ValueFields:    []int{0, 1},
		ValueSeparator: " ",
		BlankKeys:      BlankKeyAccept,
		Workers:        4,
	}
}

// Report counts what happened to the records of a load.
type Report struct {
	Records   int
	Inserted  int
	Malformed int
	BlankKeys int
	Rejected  int
}

// Merge adds the counts of other to r.
func (r *Report) Merge(other Report) {
	r.Records += other.Records
	r.Inserted += other.Inserted
	r.Malformed += other.Malformed
	r.BlankKeys += other.BlankKeys
	r.Rejected += other.Rejected
}

// maxLineSize bounds the length of a single input line.
const maxLineSize = 1 << 20

// Loader extracts pairs from delimited records.
type Loader struct {
	opts      Options
	minFields int
	log       *zap.Logger
}

// NewLoader validates opts and returns a loader for them.
func NewLoader(opts Options) (*Loader, error) {
	if opts.Comma == 0 {
		opts.Comma = ','
	}
	if opts.Comma == '"' || opts.Comma == '\r' || opts.Comma == '\n' {
		return nil, fmt.Errorf("invalid field delimiter %q", opts.Comma)
	}
	if opts.KeyField < 0 {
		return nil, fmt.Errorf("key field index must not be negative: %d", opts.KeyField)
	}
	if len(opts.ValueFields) == 0 {
		return nil, errors.New("at least one value field is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}

	minFields := max(opts.MinFields, opts.KeyField+1)
	for _, f := range opts.ValueFields {
		if f < 0 {
			return nil, fmt.Errorf("value field index must not be negative: %d", f)
		}
		minFields = max(minFields, f+1)
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{opts: opts, minFields: minFields, log: log}, nil
}

// Load reads records from r and inserts their pairs into sink. name
// identifies the input in log messages. Every line holds one record, so a
// bad line is skipped without affecting the ones after it. An error from
// sink stops the load.
func (l *Loader) Load(ctx context.Context, r io.Reader, name string, sink Sink) (Report, error) {
	var rep Report

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	line := 0
	first := true
	for {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if !sc.Scan() {
			break
		}
		line++
		text := sc.Text()
		if text == "" {
			continue
		}

		fields, err := l.parse(text)
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			first = false
			rep.Records++
			rep.Malformed++
			l.log.Warn("skipping unparsable record",
				zap.String("input", name),
				zap.Int("line", line),
				zap.Int("column", perr.Column),
				zap.Error(perr.Err))
			continue
		}
		if err != nil {
			return rep, fmt.Errorf("failed to parse %s:%d: %w", name, line, err)
		}

		if first {
			first = false
			if l.opts.SkipHeader {
				continue
			}
		}

		rep.Records++
		if len(fields) < l.minFields {
			rep.Malformed++
			l.log.Warn("skipping malformed record",
				zap.String("input", name),
				zap.Int("line", line),
				zap.Int("fields", len(fields)),
				zap.Int("min-fields", l.minFields))
			continue
		}

		key, value := l.extract(fields)
		if key == "" {
			rep.BlankKeys++
			if l.opts.BlankKeys == BlankKeyReject {
				rep.Rejected++
				l.log.Warn("rejecting record with blank key",
					zap.String("input", name),
					zap.Int("line", line))
				continue
			}
			l.log.Warn("inserting record with blank key",
				zap.String("input", name),
				zap.Int("line", line),
				zap.String("value", value))
		}

		if err := sink.Insert(key, value); err != nil {
			return rep, fmt.Errorf("failed to insert record at %s:%d: %w", name, line, err)
		}
		rep.Inserted++
	}
	if err := sc.Err(); err != nil {
		return rep, fmt.Errorf("failed to read %s: %w", name, err)
	}

	l.log.Debug("input loaded",
		zap.String("input", name),
		zap.Int("records", rep.Records),
		zap.Int("inserted", rep.Inserted),
		zap.Int("malformed", rep.Malformed))
	return rep, nil
}

// parse splits a single line into fields. Quoted fields may hold the
// delimiter but never span lines.
func (l *Loader) parse(text string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(text))
	cr.Comma = l.opts.Comma
	cr.FieldsPerRecord = -1
	return cr.Read()
}

func (l *Loader) extract(fields []string) (string, string) {
	key := strings.TrimSpace(fields[l.opts.KeyField])
	parts := make([]string, len(l.opts.ValueFields))
	for i, f := range l.opts.ValueFields {
		parts[i] = strings.TrimSpace(fields[f])
	}
	return key, strings.Join(parts, l.opts.ValueSeparator)
}

// LoadFile loads a single file.
func (l *Loader) LoadFile(ctx context.Context, path string, sink Sink) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return l.Load(ctx, f, path, sink)
}

// LoadFiles loads several files on a pool of Options.Workers goroutines.
// sink must be safe for concurrent use when more than one worker is
// configured. The returned report covers every file, including those that
// failed part-way; the errors of all failed files are combined.
func (l *Loader) LoadFiles(ctx context.Context, paths []string, sink Sink) (Report, error) {
	var (
		mu    sync.Mutex
		total Report
		errs  error
		wg    sync.WaitGroup
	)

	pool, err := ants.NewPool(l.opts.Workers, ants.WithPanicHandler(func(v interface{}) {
		l.log.Error("ingest worker panicked", zap.Any("panic", v))
	}))
	if err != nil {
		return total, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer func() {
		if err := pool.ReleaseTimeout(5 * time.Second); err != nil {
			l.log.Warn("worker pool release timed out", zap.Error(err))
		}
	}()

	for _, path := range paths {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			rep, err := l.LoadFile(ctx, path, sink)
			mu.Lock()
			defer mu.Unlock()
			total.Merge(rep)
			errs = multierr.Append(errs, err)
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			mu.Lock()
			errs = multierr.Append(errs, fmt.Errorf("failed to schedule %s: %w", path, err))
			mu.Unlock()
		}
	}
	wg.Wait()

	return total, errs
}
