package relay

import (
	"context"
	"sync"
	"time"

	"github.com/nerrad567/airrelay/internal/brightness"
	"github.com/nerrad567/airrelay/internal/infrastructure/logging"
	"github.com/nerrad567/airrelay/internal/publish"
	"github.com/nerrad567/airrelay/internal/sampling"
)

// finalFlushTimeout bounds the best-effort flush attempted during shutdown.
const finalFlushTimeout = 5 * time.Second

// Collector fetches the current raw sample from the sensor device.
type Collector interface {
	Current(ctx context.Context) (sampling.Sample, error)
}

// Mirror republishes sealed readings to a secondary consumer. Mirror
// failures never affect the primary delivery path.
type Mirror interface {
	MirrorReading(reading sampling.Reading) error
}

// Config carries the resolved relay settings. All durations are concrete;
// parsing the textual forms happens in the config package.
type Config struct {
	Location           string
	Samples            int
	Period             time.Duration
	TickGuard          time.Duration
	QueueLimit         int
	ReflushInterval    time.Duration
	BrightnessInterval time.Duration
}

// Status is a point-in-time snapshot of the relay's data path, served by
// the operational API.
type Status struct {
	Location          string     `json:"location"`
	StartedAt         time.Time  `json:"started_at"`
	WindowFill        int        `json:"window_fill"`
	WindowSize        int        `json:"window_size"`
	QueueLength       int        `json:"queue_length"`
	QueueDropped      uint64     `json:"queue_dropped"`
	LastSealAt        *time.Time `json:"last_seal_at,omitempty"`
	LastDeliveryAt    *time.Time `json:"last_delivery_at,omitempty"`
	BrightnessLED     *int       `json:"brightness_led,omitempty"`
	BrightnessDisplay *int       `json:"brightness_display,omitempty"`
}

// Relay owns the sampling window, the retry queue and the brightness
// scheduler, and drives them from two goroutines: a drift-corrected
// sampling loop and a coarse brightness loop.
//
// Thread Safety:
//   - Run must be called at most once.
//   - Status is safe to call concurrently with Run.
type Relay struct {
	cfg       Config
	collector Collector
	queue     *publish.Queue
	window    *sampling.Window
	scheduler *brightness.Scheduler // nil when the schedule is disabled
	mirror    Mirror                // nil when no mirror is configured
	logger    *logging.Logger
	now       func() time.Time

	mu           sync.Mutex
	startedAt    time.Time
	lastFlush    time.Time
	lastSeal     time.Time
	lastDelivery time.Time
	windowFill   int
}

// New assembles a Relay. The scheduler and mirror are optional; pass nil
// to disable the corresponding loop or fan-out.
func New(cfg Config, collector Collector, writer publish.Writer, scheduler *brightness.Scheduler, mirror Mirror, logger *logging.Logger) *Relay {
	if cfg.BrightnessInterval <= 0 {
		cfg.BrightnessInterval = time.Minute
	}
	r := &Relay{
		cfg:       cfg,
		collector: collector,
		queue:     publish.NewQueue(cfg.QueueLimit, writer),
		window:    sampling.NewWindow(cfg.Samples),
		scheduler: scheduler,
		mirror:    mirror,
		logger:    logger,
		now:       time.Now,
	}
	r.queue.SetOnDrop(func(e publish.Entry) {
		queueDropped.Inc()
		logger.Warn("retry queue full, dropping oldest reading",
			"reading_time", e.Reading.Timestamp,
			"attempts", e.Attempts,
			"queue_limit", cfg.QueueLimit)
	})
	return r
}

// Run executes the relay until ctx is cancelled, then attempts one final
// best-effort flush of whatever the window and queue still hold. It always
// returns nil after a clean shutdown so cancellation is not reported as a
// failure.
func (r *Relay) Run(ctx context.Context) error {
	r.mu.Lock()
	r.startedAt = r.now()
	r.lastFlush = r.startedAt
	r.mu.Unlock()

	var wg sync.WaitGroup
	if r.scheduler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.runBrightness(ctx)
		}()
	}

	r.runSampling(ctx)
	wg.Wait()
	r.finalize()
	return nil
}

// runSampling fetches one sample per tick on the ideal schedule, seals
// full windows, and reflushes a non-empty queue when the reflush interval
// has elapsed.
func (r *Relay) runSampling(ctx context.Context) {
	ticker := sampling.NewTicker(r.cfg.Period, r.cfg.TickGuard, r.now())
	r.logger.Info("sampling loop started",
		"samples_per_window", r.cfg.Samples,
		"period", r.cfg.Period,
		"location", r.cfg.Location)

	for {
		deadline := ticker.Next(r.now())
		if err := sleepUntil(ctx, deadline.Sub(r.now())); err != nil {
			return
		}
		r.sampleOnce(ctx)
		r.maybeReflush(ctx)
	}
}

// sampleOnce performs a single tick: fetch, accumulate, and seal when the
// window fills. A failed fetch skips the tick; the window keeps whatever
// it already holds.
func (r *Relay) sampleOnce(ctx context.Context) {
	sample, err := r.collector.Current(ctx)
	if err != nil {
		fetchErrors.Inc()
		r.logger.Warn("sample fetch failed, skipping tick", "error", err)
		return
	}
	samplesCollected.Inc()

	r.window.Add(sample)
	r.setWindowFill(r.window.Len())
	if !r.window.Full() {
		return
	}
	r.seal(ctx)
}

// seal drains the window into an averaged reading, mirrors it, enqueues it
// and triggers a flush pass.
func (r *Relay) seal(ctx context.Context) {
	reading, ok := r.window.Seal(r.cfg.Location)
	r.setWindowFill(0)
	if !ok {
		return
	}
	windowsSealed.Inc()

	r.mu.Lock()
	r.lastSeal = reading.Timestamp
	r.mu.Unlock()

	if r.mirror != nil {
		if err := r.mirror.MirrorReading(reading); err != nil {
			mirrorErrors.Inc()
			r.logger.Warn("reading mirror failed", "error", err)
		}
	}

	r.queue.Enqueue(reading, r.now())
	queueLength.Set(float64(r.queue.Len()))
	r.flush(ctx)
}

// flush runs one delivery pass over the queue and records the outcome.
func (r *Relay) flush(ctx context.Context) {
	res := r.queue.Flush(ctx)
	queueLength.Set(float64(res.Remaining))

	r.mu.Lock()
	r.lastFlush = r.now()
	if res.Delivered > 0 {
		r.lastDelivery = r.lastFlush
	}
	r.mu.Unlock()

	if res.Delivered > 0 {
		readingsDelivered.Add(float64(res.Delivered))
	}
	if res.Err != nil {
		deliveryErrors.Inc()
		r.logger.Warn("delivery failed, readings held for retry",
			"delivered", res.Delivered,
			"remaining", res.Remaining,
			"error", res.Err)
		return
	}
	if res.Delivered > 0 {
		r.logger.Debug("readings delivered",
			"delivered", res.Delivered,
			"remaining", res.Remaining)
	}
}

// maybeReflush retries a backlogged queue between seals so recovery does
// not have to wait for the next full window.
func (r *Relay) maybeReflush(ctx context.Context) {
	if r.cfg.ReflushInterval <= 0 || r.queue.Len() == 0 {
		return
	}
	r.mu.Lock()
	due := r.now().Sub(r.lastFlush) >= r.cfg.ReflushInterval
	r.mu.Unlock()
	if !due {
		return
	}
	r.logger.Info("reflushing retry queue", "queued", r.queue.Len())
	r.flush(ctx)
}

// runBrightness evaluates the brightness schedule on a coarse interval,
// pushing device configuration only when the desired levels change.
func (r *Relay) runBrightness(ctx context.Context) {
	r.logger.Info("brightness loop started", "interval", r.cfg.BrightnessInterval)
	ticker := time.NewTicker(r.cfg.BrightnessInterval)
	defer ticker.Stop()

	for {
		pushed, err := r.scheduler.Tick(ctx, r.now())
		if err != nil {
			brightnessPushErrors.Inc()
			r.logger.Warn("brightness push failed, will retry", "error", err)
		} else if pushed {
			brightnessPushes.Inc()
			led, display, _ := r.scheduler.Levels()
			r.logger.Info("brightness updated", "led", led, "display", display)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// finalize seals any partial window and attempts a last flush so a clean
// shutdown loses as little data as possible. Whatever still fails to send
// is lost with the process; the queue is memory-only.
func (r *Relay) finalize() {
	ctx, cancel := context.WithTimeout(context.Background(), finalFlushTimeout)
	defer cancel()

	if reading, ok := r.window.Seal(r.cfg.Location); ok {
		r.setWindowFill(0)
		r.logger.Info("sealing partial window on shutdown", "reading_time", reading.Timestamp)
		r.queue.Enqueue(reading, r.now())
	}
	if r.queue.Len() == 0 {
		return
	}
	r.flush(ctx)
	if remaining := r.queue.Len(); remaining > 0 {
		r.logger.Warn("shutdown with undelivered readings", "remaining", remaining)
	}
}

// Status reports the relay's current state for the operational API.
func (r *Relay) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Status{
		Location:     r.cfg.Location,
		StartedAt:    r.startedAt,
		WindowFill:   r.windowFill,
		WindowSize:   r.cfg.Samples,
		QueueLength:  r.queue.Len(),
		QueueDropped: r.queue.Dropped(),
	}
	if !r.lastSeal.IsZero() {
		t := r.lastSeal
		st.LastSealAt = &t
	}
	if !r.lastDelivery.IsZero() {
		t := r.lastDelivery
		st.LastDeliveryAt = &t
	}
	if r.scheduler != nil {
		if led, display, known := r.scheduler.Levels(); known {
			st.BrightnessLED = &led
			st.BrightnessDisplay = &display
		}
	}
	return st
}

func (r *Relay) setWindowFill(n int) {
	r.mu.Lock()
	r.windowFill = n
	r.mu.Unlock()
}

// sleepUntil blocks for d or until ctx is cancelled. A non-positive d
// returns immediately with ctx's current error, if any.
func sleepUntil(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
