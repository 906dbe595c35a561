package throughput

import (
	"context"
	stderrors "errors"
	"io"
	"math"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kbukum/sdkcore/configbag"
	"github.com/kbukum/sdkcore/orchestrator"
	"github.com/kbukum/sdkcore/sdkbody"
	"github.com/kbukum/sdkcore/sdkhttp"
	"github.com/kbukum/sdkcore/typeerased"
)

// eightBytesPerSecond yields n chunks of 8 bytes, advancing clk by one
// second before every chunk but the first.
type eightBytesPerSecond struct {
	clk   *clock.Mock
	n     int
	calls int
}

func (s *eightBytesPerSecond) Next(context.Context) ([]byte, error) {
	if s.calls == s.n {
		return nil, io.EOF
	}
	if s.calls > 0 {
		s.clk.Add(time.Second)
	}
	s.calls++
	return []byte("12345678"), nil
}

func drain(b *sdkbody.Body) (int, error) {
	total := 0
	for {
		chunk, err := b.Next(context.Background())
		if stderrors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		total += len(chunk)
	}
}

func slowBodyOptions(clk clock.Clock, floor float64) Options {
	return Options{
		MinimumThroughput: BytesPerSecond(floor),
		CheckInterval:     time.Hour,
		Samples:           10,
		Clock:             clk,
	}
}

func TestBody_FailsBelowMinimum(t *testing.T) {
	clk := clock.NewMock()
	body := Wrap(sdkbody.FromStream(&eightBytesPerSecond{clk: clk, n: 255}), slowBodyOptions(clk, 9))

	_, err := drain(body)
	var below *BelowMinimumError
	if !stderrors.As(err, &below) {
		t.Fatalf("expected *BelowMinimumError, got %v", err)
	}
	if got := below.Actual.BytesPerSecond(); math.Abs(got-80.0/9.0) > 0.01 {
		t.Errorf("expected actual ≈ 8.89 B/s, got %v", got)
	}
	if below.Expected.BytesPerSecond() != 9 {
		t.Errorf("expected floor of 9 B/s, got %v", below.Expected)
	}

	if _, again := body.Next(context.Background()); !stderrors.As(again, &below) {
		t.Errorf("expected body to stay failed, got %v", again)
	}
}

func TestBody_DeliversAtOrAboveMinimum(t *testing.T) {
	for _, floor := range []float64{8, 1, 0} {
		clk := clock.NewMock()
		body := Wrap(sdkbody.FromStream(&eightBytesPerSecond{clk: clk, n: 255}), slowBodyOptions(clk, floor))

		n, err := drain(body)
		if err != nil {
			t.Fatalf("floor %v: unexpected error %v", floor, err)
		}
		if n != 2040 {
			t.Errorf("floor %v: expected 2040 bytes, got %d", floor, n)
		}
	}
}

func TestBody_DetectsStalledStream(t *testing.T) {
	clk := clock.NewMock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stalled := sdkbody.FromStream(sdkbody.StreamFunc(func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))
	body := Wrap(stalled, Options{
		MinimumThroughput: BytesPerSecond(1),
		CheckInterval:     time.Second,
		Samples:           3,
		Clock:             clk,
	})

	result := make(chan error, 1)
	go func() {
		_, err := body.Next(ctx)
		result <- err
	}()

	var err error
	for i := 0; i < 1000 && err == nil; i++ {
		select {
		case err = <-result:
		default:
			clk.Add(time.Second)
		}
	}
	var below *BelowMinimumError
	if !stderrors.As(err, &below) {
		t.Fatalf("expected stall to be detected, got %v", err)
	}
	if below.Actual.Bytes != 0 {
		t.Errorf("expected zero observed bytes, got %v", below.Actual.Bytes)
	}
}

func TestBody_PassesThroughErrors(t *testing.T) {
	boom := stderrors.New("reset")
	body := Wrap(sdkbody.FromStream(sdkbody.StreamFunc(func(context.Context) ([]byte, error) {
		return nil, boom
	})), Options{MinimumThroughput: BytesPerSecond(1), Clock: clock.NewMock()})

	if _, err := body.Next(context.Background()); !stderrors.Is(err, boom) {
		t.Errorf("expected inner error, got %v", err)
	}
}

func TestBody_KeepsContentLength(t *testing.T) {
	body := Wrap(sdkbody.FromString("abc"), Options{Clock: clock.NewMock()})
	if n, ok := body.ContentLength(); !ok || n != 3 {
		t.Errorf("expected length 3, got %d (%v)", n, ok)
	}
}

func TestThroughput_Formatting(t *testing.T) {
	if got := BytesPerSecond(9).String(); got != "9 B/s" {
		t.Errorf("unexpected %q", got)
	}
	if got := (Throughput{Bytes: 60, Per: time.Minute}).BytesPerSecond(); got != 1 {
		t.Errorf("expected 1 B/s, got %v", got)
	}
	err := &BelowMinimumError{Expected: BytesPerSecond(9), Actual: BytesPerSecond(8.5)}
	want := "minimum throughput was specified at 9 B/s, but throughput of 8.5 B/s was observed"
	if err.Error() != want {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestSampleLog(t *testing.T) {
	l := newSampleLog(3)
	if !l.empty() {
		t.Fatal("expected empty log")
	}
	start := time.Unix(0, 0)
	for i := 0; i < 2; i++ {
		l.push(sample{at: start.Add(time.Duration(i) * time.Second), bytes: 10})
	}
	if _, ok := l.rate(); ok {
		t.Error("partial log must not be evaluated")
	}
	l.push(sample{at: start.Add(2 * time.Second), bytes: 10})
	rate, ok := l.rate()
	if !ok || rate.BytesPerSecond() != 15 {
		t.Errorf("expected 15 B/s, got %v (%v)", rate, ok)
	}
}

func TestConfig_Options(t *testing.T) {
	cfg := Config{Enabled: true}
	cfg.ApplyDefaults()
	opts := cfg.Options()
	if opts.MinimumThroughput.BytesPerSecond() != 1 || opts.CheckInterval != time.Second || opts.Samples != 10 {
		t.Errorf("unexpected defaults %+v", opts)
	}
}

func TestInterceptor_WrapsBodies(t *testing.T) {
	clk := clock.NewMock()
	layer := configbag.NewLayer("test")
	configbag.Store[clock.Clock](layer, clk)
	bag := configbag.New(layer.Freeze())

	req, err := sdkhttp.NewRequest(http.MethodPut, "https://example.com", sdkbody.FromReader(strings.NewReader("upload")))
	if err != nil {
		t.Fatal(err)
	}
	ictx := orchestrator.NewInterceptorContext(typeerased.New(struct{}{}))
	ictx.SetRequest(req)
	ictx.SetResponse(sdkhttp.NewResponse(http.StatusOK, sdkbody.FromString("download")))

	i := NewInterceptor(Options{MinimumThroughput: BytesPerSecond(1)})
	if err := i.ModifyBeforeTransmit(context.Background(), ictx, bag); err != nil {
		t.Fatal(err)
	}
	if err := i.ModifyBeforeDeserialization(context.Background(), ictx, bag); err != nil {
		t.Fatal(err)
	}

	for name, b := range map[string]*sdkbody.Body{"request": ictx.Request().Body, "response": ictx.Response().Body} {
		agg, err := sdkbody.Collect(context.Background(), b)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if agg.Len() == 0 {
			t.Errorf("%s: expected data", name)
		}
	}
}

func TestInterceptor_LeavesInMemoryRequests(t *testing.T) {
	body := sdkbody.FromString("small")
	req, _ := sdkhttp.NewRequest(http.MethodPut, "https://example.com", body)
	ictx := orchestrator.NewInterceptorContext(typeerased.New(struct{}{}))
	ictx.SetRequest(req)
	if err := NewInterceptor(Options{}).ModifyBeforeTransmit(context.Background(), ictx, nil); err != nil {
		t.Fatal(err)
	}
	if ictx.Request().Body != body {
		t.Error("in-memory body should not be wrapped")
	}
}
