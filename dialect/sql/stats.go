package sql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Executor runs compiled statements. *Driver and *Tx implement it, and so
// do StatsDriver and DebugDriver, which wrap another Executor.
type Executor interface {
	Dialect() string
	ExecWithDuration(ctx context.Context, st Statement) (*ExecResult, error)
}

var (
	_ Executor = (*Driver)(nil)
	_ Executor = (*Tx)(nil)
	_ Executor = (*StatsDriver)(nil)
	_ Executor = (*DebugDriver)(nil)
)

// Kind classifies a statement by its leading keyword.
type Kind uint8

// Statement kinds.
const (
	KindSelect Kind = iota
	KindInsert
	KindUpdate
	KindDelete
	KindOther
	numKinds
)

var kindNames = [numKinds]string{"select", "insert", "update", "delete", "other"}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if k < numKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// KindOf returns the kind of st.
func KindOf(st Statement) Kind {
	q := strings.TrimSpace(st.Query)
	if i := strings.IndexAny(q, " \t\n("); i > 0 {
		q = q[:i]
	}
	for k := KindSelect; k < KindOther; k++ {
		if strings.EqualFold(q, kindNames[k]) {
			return k
		}
	}
	return KindOther
}

type counters struct {
	count    atomic.Int64
	errors   atomic.Int64
	slow     atomic.Int64
	duration atomic.Int64 // nanoseconds
}

// QueryStats holds execution statistics per statement kind.
type QueryStats struct {
	kinds [numKinds]counters
}

func (s *QueryStats) record(k Kind, d time.Duration, err error, slow bool) {
	c := &s.kinds[k]
	c.count.Add(1)
	c.duration.Add(int64(d))
	if err != nil {
		c.errors.Add(1)
	}
	if slow {
		c.slow.Add(1)
	}
}

// Stats returns a snapshot of the current statistics.
func (s *QueryStats) Stats() StatsSnapshot {
	var snap StatsSnapshot
	for k := range s.kinds {
		c := &s.kinds[k]
		snap.Kinds[k] = KindStats{
			Count:    c.count.Load(),
			Errors:   c.errors.Load(),
			Slow:     c.slow.Load(),
			Duration: time.Duration(c.duration.Load()),
		}
	}
	return snap
}

// Reset resets all statistics to zero.
func (s *QueryStats) Reset() {
	for k := range s.kinds {
		c := &s.kinds[k]
		c.count.Store(0)
		c.errors.Store(0)
		c.slow.Store(0)
		c.duration.Store(0)
	}
}

// KindStats are the statistics of one statement kind.
type KindStats struct {
	Count    int64
	Errors   int64
	Slow     int64
	Duration time.Duration
}

// StatsSnapshot is a point-in-time snapshot of query statistics.
type StatsSnapshot struct {
	Kinds [numKinds]KindStats
}

// Kind returns the statistics of kind k.
func (s StatsSnapshot) Kind(k Kind) KindStats {
	if k >= numKinds {
		return KindStats{}
	}
	return s.Kinds[k]
}

// Total sums the statistics of every kind.
func (s StatsSnapshot) Total() KindStats {
	var t KindStats
	for _, k := range s.Kinds {
		t.Count += k.Count
		t.Errors += k.Errors
		t.Slow += k.Slow
		t.Duration += k.Duration
	}
	return t
}

// AvgDuration returns the average statement duration.
func (s StatsSnapshot) AvgDuration() time.Duration {
	t := s.Total()
	if t.Count == 0 {
		return 0
	}
	return t.Duration / time.Duration(t.Count)
}

// String returns a one-line summary, listing only kinds that ran.
func (s StatsSnapshot) String() string {
	t := s.Total()
	var b strings.Builder
	fmt.Fprintf(&b, "statements=%d duration=%s avg=%s slow=%d errors=%d", t.Count, t.Duration, s.AvgDuration(), t.Slow, t.Errors)
	for k, ks := range s.Kinds {
		if ks.Count > 0 {
			fmt.Fprintf(&b, " %s=%d", Kind(k), ks.Count)
		}
	}
	return b.String()
}

// SlowQueryHook is called when a statement exceeds the slow threshold.
type SlowQueryHook func(ctx context.Context, st Statement, duration time.Duration)

// StatsDriver records statistics for the statements run on an Executor.
// Durations come from ExecResult.Duration, so binding and scanning
// overhead outside the database round trip is not counted.
type StatsDriver struct {
	Executor
	stats  *QueryStats
	config *statsConfig
}

type statsConfig struct {
	mu        sync.RWMutex
	threshold time.Duration
	hook      SlowQueryHook
	logger    *slog.Logger
}

// StatsOption configures the StatsDriver.
type StatsOption func(*statsConfig)

// WithSlowThreshold sets the threshold for slow statement detection.
// Default is 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(c *statsConfig) {
		c.threshold = d
	}
}

// WithSlowQueryHook sets a callback for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(c *statsConfig) {
		c.hook = hook
	}
}

// WithStatsLogger sets the logger used by WithSlowQueryLog.
func WithStatsLogger(l *slog.Logger) StatsOption {
	return func(c *statsConfig) {
		c.logger = l
	}
}

// WithSlowQueryLog logs slow statements at warn level.
func WithSlowQueryLog() StatsOption {
	return func(c *statsConfig) {
		c.hook = func(ctx context.Context, st Statement, duration time.Duration) {
			c.logger.WarnContext(ctx, "slow query detected",
				"kind", KindOf(st), "duration", duration, "query", st.Query, "params", st.Params)
		}
	}
}

// NewStatsDriver wraps exec with statistics collection.
//
//	drv, _ := sql.Open(dialect.Postgres, dsn)
//	stats := sql.NewStatsDriver(drv, sql.WithSlowThreshold(200*time.Millisecond), sql.WithSlowQueryLog())
//	client := quill.NewClient(stats, registry)
//	fmt.Println(stats.QueryStats().Stats())
func NewStatsDriver(exec Executor, opts ...StatsOption) *StatsDriver {
	c := &statsConfig{
		threshold: 100 * time.Millisecond,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return &StatsDriver{Executor: exec, stats: &QueryStats{}, config: c}
}

// Wrap returns a driver recording into the same statistics as d, running
// on exec. It is used for transactions started on the underlying driver.
func (d *StatsDriver) Wrap(exec Executor) *StatsDriver {
	return &StatsDriver{Executor: exec, stats: d.stats, config: d.config}
}

// QueryStats returns the collected statistics.
func (d *StatsDriver) QueryStats() *QueryStats {
	return d.stats
}

// SlowThreshold returns the current slow statement threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.config.mu.RLock()
	defer d.config.mu.RUnlock()
	return d.config.threshold
}

// SetSlowThreshold updates the slow statement threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.config.mu.Lock()
	defer d.config.mu.Unlock()
	d.config.threshold = threshold
}

// ExecWithDuration runs st and records its kind, duration and outcome.
// Failed statements have no ExecResult and are timed here.
func (d *StatsDriver) ExecWithDuration(ctx context.Context, st Statement) (*ExecResult, error) {
	start := time.Now()
	res, err := d.Executor.ExecWithDuration(ctx, st)
	duration := time.Since(start)
	if res != nil {
		duration = res.Duration
	}
	d.config.mu.RLock()
	threshold, hook := d.config.threshold, d.config.hook
	d.config.mu.RUnlock()

	slow := duration > threshold
	d.stats.record(KindOf(st), duration, err, slow)
	if slow && hook != nil {
		hook(ctx, st, duration)
	}
	return res, err
}

// DebugDriver logs every statement run on an Executor.
type DebugDriver struct {
	Executor
	logger *slog.Logger
	level  slog.Level
}

// DebugOption configures the DebugDriver.
type DebugOption func(*DebugDriver)

// DebugWithLogger sets the logger. Default is slog.Default().
func DebugWithLogger(l *slog.Logger) DebugOption {
	return func(d *DebugDriver) {
		d.logger = l
	}
}

// DebugWithLevel sets the level statements are logged at. Default is
// debug.
func DebugWithLevel(level slog.Level) DebugOption {
	return func(d *DebugDriver) {
		d.level = level
	}
}

// NewDebugDriver wraps exec with statement logging. Queries are logged in
// their bound form.
func NewDebugDriver(exec Executor, opts ...DebugOption) *DebugDriver {
	d := &DebugDriver{Executor: exec, logger: slog.Default(), level: slog.LevelDebug}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// ExecWithDuration runs st and logs it with its outcome.
func (d *DebugDriver) ExecWithDuration(ctx context.Context, st Statement) (*ExecResult, error) {
	if !d.logger.Enabled(ctx, d.level) {
		return d.Executor.ExecWithDuration(ctx, st)
	}
	query, args, err := Bind(d.Dialect(), st)
	if err != nil {
		query, args = st.Query, nil
	}
	res, err := d.Executor.ExecWithDuration(ctx, st)
	attrs := []any{"kind", KindOf(st), "query", query, "args", args}
	if err != nil {
		d.logger.Log(ctx, d.level, "statement failed", append(attrs, "error", err)...)
		return nil, err
	}
	d.logger.Log(ctx, d.level, "statement", append(attrs, "rows", res.RowsAffected, "duration", res.Duration)...)
	return res, nil
}
