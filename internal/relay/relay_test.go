package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/airrelay/internal/brightness"
	"github.com/nerrad567/airrelay/internal/infrastructure/logging"
	"github.com/nerrad567/airrelay/internal/sampling"
)

type fakeCollector struct {
	mu      sync.Mutex
	calls   int
	err     error
	readout func(call int) map[string]float64
}

func (c *fakeCollector) Current(ctx context.Context) (sampling.Sample, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return sampling.Sample{}, c.err
	}
	return sampling.Sample{
		Metrics:   c.readout(c.calls),
		FetchedAt: time.Now(),
	}, nil
}

func (c *fakeCollector) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeWriter struct {
	mu       sync.Mutex
	written  []sampling.Reading
	attempts int
	fail     bool
}

func (w *fakeWriter) WriteReading(ctx context.Context, reading sampling.Reading) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts++
	if w.fail {
		return errors.New("write refused")
	}
	w.written = append(w.written, reading)
	return nil
}

func (w *fakeWriter) setFail(fail bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.fail = fail
}

func (w *fakeWriter) writtenReadings() []sampling.Reading {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]sampling.Reading, len(w.written))
	copy(out, w.written)
	return out
}

func (w *fakeWriter) attemptCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attempts
}

type fakeMirror struct {
	mu       sync.Mutex
	mirrored []sampling.Reading
	err      error
}

func (m *fakeMirror) MirrorReading(reading sampling.Reading) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.mirrored = append(m.mirrored, reading)
	return nil
}

type fakePusher struct {
	mu    sync.Mutex
	calls int
}

func (p *fakePusher) PushBrightness(ctx context.Context, led, display int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return nil
}

func (p *fakePusher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func testConfig(samples int) Config {
	return Config{
		Location:           "office",
		Samples:            samples,
		Period:             time.Minute,
		TickGuard:          time.Second,
		QueueLimit:         100,
		ReflushInterval:    5 * time.Minute,
		BrightnessInterval: time.Minute,
	}
}

func co2Ramp(base float64) func(call int) map[string]float64 {
	return func(call int) map[string]float64 {
		return map[string]float64{"co2": base + float64(call-1)*10}
	}
}

func TestNewDefaultsBrightnessInterval(t *testing.T) {
	cfg := testConfig(1)
	cfg.BrightnessInterval = 0
	r := New(cfg, &fakeCollector{readout: co2Ramp(400)}, &fakeWriter{}, nil, nil, logging.Default())

	// A non-positive interval would panic time.NewTicker in the brightness
	// loop; New must substitute a sane default instead.
	if r.cfg.BrightnessInterval != time.Minute {
		t.Errorf("BrightnessInterval = %v, want %v", r.cfg.BrightnessInterval, time.Minute)
	}
}

func TestSampleOnceSealsFullWindow(t *testing.T) {
	collector := &fakeCollector{readout: co2Ramp(400)}
	writer := &fakeWriter{}
	r := New(testConfig(2), collector, writer, nil, nil, logging.Default())

	ctx := context.Background()
	r.sampleOnce(ctx)
	r.sampleOnce(ctx)

	written := writer.writtenReadings()
	if len(written) != 1 {
		t.Fatalf("written readings = %d, want 1", len(written))
	}
	if got := written[0].Metrics["co2"]; got != 410 {
		t.Errorf("averaged co2 = %v, want 410", got)
	}
	if written[0].Location != "office" {
		t.Errorf("location = %q, want %q", written[0].Location, "office")
	}
	if r.queue.Len() != 0 {
		t.Errorf("queue length after delivery = %d, want 0", r.queue.Len())
	}
	if r.window.Len() != 0 {
		t.Errorf("window fill after seal = %d, want 0", r.window.Len())
	}
}

func TestSampleOnceSkipsFailedFetch(t *testing.T) {
	collector := &fakeCollector{err: errors.New("device unreachable")}
	writer := &fakeWriter{}
	r := New(testConfig(2), collector, writer, nil, nil, logging.Default())

	r.sampleOnce(context.Background())

	if r.window.Len() != 0 {
		t.Errorf("window fill after failed fetch = %d, want 0", r.window.Len())
	}
	if writer.attemptCount() != 0 {
		t.Errorf("write attempts = %d, want 0", writer.attemptCount())
	}
}

func TestFailedDeliveryHeldForRetry(t *testing.T) {
	collector := &fakeCollector{readout: co2Ramp(400)}
	writer := &fakeWriter{fail: true}
	r := New(testConfig(1), collector, writer, nil, nil, logging.Default())

	ctx := context.Background()
	r.sampleOnce(ctx)

	if r.queue.Len() != 1 {
		t.Fatalf("queue length after failed delivery = %d, want 1", r.queue.Len())
	}
	if len(writer.writtenReadings()) != 0 {
		t.Fatalf("written readings = %d, want 0", len(writer.writtenReadings()))
	}

	// Recovery: the next reflush pass drains the backlog.
	writer.setFail(false)
	r.mu.Lock()
	r.lastFlush = time.Now().Add(-10 * time.Minute)
	r.mu.Unlock()
	r.maybeReflush(ctx)

	if r.queue.Len() != 0 {
		t.Errorf("queue length after recovery = %d, want 0", r.queue.Len())
	}
	if len(writer.writtenReadings()) != 1 {
		t.Errorf("written readings after recovery = %d, want 1", len(writer.writtenReadings()))
	}
}

func TestMaybeReflushRespectsInterval(t *testing.T) {
	collector := &fakeCollector{readout: co2Ramp(400)}
	writer := &fakeWriter{fail: true}
	r := New(testConfig(1), collector, writer, nil, nil, logging.Default())

	ctx := context.Background()
	r.sampleOnce(ctx)
	attempts := writer.attemptCount()

	// lastFlush was just set by the failed pass, so the interval has not
	// elapsed and no extra attempt should be made.
	r.maybeReflush(ctx)
	if got := writer.attemptCount(); got != attempts {
		t.Errorf("write attempts after early reflush = %d, want %d", got, attempts)
	}
}

func TestFinalizeSealsPartialWindow(t *testing.T) {
	collector := &fakeCollector{readout: co2Ramp(400)}
	writer := &fakeWriter{}
	r := New(testConfig(3), collector, writer, nil, nil, logging.Default())

	r.sampleOnce(context.Background())
	if r.window.Len() != 1 {
		t.Fatalf("window fill = %d, want 1", r.window.Len())
	}

	r.finalize()

	written := writer.writtenReadings()
	if len(written) != 1 {
		t.Fatalf("written readings after finalize = %d, want 1", len(written))
	}
	if got := written[0].Metrics["co2"]; got != 400 {
		t.Errorf("partial-window co2 = %v, want 400", got)
	}
}

func TestMirrorFailureDoesNotBlockDelivery(t *testing.T) {
	collector := &fakeCollector{readout: co2Ramp(400)}
	writer := &fakeWriter{}
	mirror := &fakeMirror{err: errors.New("broker offline")}
	r := New(testConfig(1), collector, writer, nil, mirror, logging.Default())

	r.sampleOnce(context.Background())

	if len(writer.writtenReadings()) != 1 {
		t.Errorf("written readings = %d, want 1", len(writer.writtenReadings()))
	}
}

func TestMirrorReceivesSealedReadings(t *testing.T) {
	collector := &fakeCollector{readout: co2Ramp(400)}
	writer := &fakeWriter{}
	mirror := &fakeMirror{}
	r := New(testConfig(1), collector, writer, nil, mirror, logging.Default())

	r.sampleOnce(context.Background())

	mirror.mu.Lock()
	defer mirror.mu.Unlock()
	if len(mirror.mirrored) != 1 {
		t.Fatalf("mirrored readings = %d, want 1", len(mirror.mirrored))
	}
	if got := mirror.mirrored[0].Metrics["co2"]; got != 400 {
		t.Errorf("mirrored co2 = %v, want 400", got)
	}
}

func TestStatusSnapshot(t *testing.T) {
	collector := &fakeCollector{readout: co2Ramp(400)}
	writer := &fakeWriter{}
	r := New(testConfig(3), collector, writer, nil, nil, logging.Default())

	st := r.Status()
	if st.Location != "office" {
		t.Errorf("location = %q, want %q", st.Location, "office")
	}
	if st.WindowSize != 3 {
		t.Errorf("window size = %d, want 3", st.WindowSize)
	}
	if st.LastSealAt != nil {
		t.Errorf("last seal before any seal = %v, want nil", st.LastSealAt)
	}

	ctx := context.Background()
	r.sampleOnce(ctx)
	st = r.Status()
	if st.WindowFill != 1 {
		t.Errorf("window fill = %d, want 1", st.WindowFill)
	}

	r.sampleOnce(ctx)
	r.sampleOnce(ctx)
	st = r.Status()
	if st.WindowFill != 0 {
		t.Errorf("window fill after seal = %d, want 0", st.WindowFill)
	}
	if st.LastSealAt == nil {
		t.Error("last seal after a seal = nil, want timestamp")
	}
	if st.LastDeliveryAt == nil {
		t.Error("last delivery after a delivery = nil, want timestamp")
	}
	if st.QueueLength != 0 {
		t.Errorf("queue length = %d, want 0", st.QueueLength)
	}
}

func TestRunStopsOnCancelAndFlushes(t *testing.T) {
	collector := &fakeCollector{readout: co2Ramp(400)}
	writer := &fakeWriter{}

	cfg := testConfig(2)
	cfg.Period = 5 * time.Millisecond
	cfg.TickGuard = time.Millisecond
	cfg.BrightnessInterval = 5 * time.Millisecond

	schedule, err := brightness.ParseSchedule("20/0800-2000/100", "0/2200-0600/100")
	if err != nil {
		t.Fatalf("ParseSchedule() error = %v", err)
	}
	pusher := &fakePusher{}
	scheduler := brightness.NewScheduler(schedule, pusher)

	r := New(cfg, collector, writer, scheduler, nil, logging.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(60 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if collector.callCount() == 0 {
		t.Error("collector was never called")
	}
	if len(writer.writtenReadings()) == 0 {
		t.Error("no readings delivered before shutdown")
	}
	// The schedule is pushed once on the first tick and then only on
	// transitions, which cannot occur within the test's runtime.
	if got := pusher.callCount(); got != 1 {
		t.Errorf("brightness pushes = %d, want 1", got)
	}
}
