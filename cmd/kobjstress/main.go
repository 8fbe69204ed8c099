// Command kobjstress hammers one semaphore with concurrent producers and
// consumers and checks that every accepted signal was consumed exactly
// once.
package main

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/kit/metrics/provider"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/llxisdsh/kobj"
)

type options struct {
	producers   int
	consumers   int
	signals     int
	counter     uint
	timeout     time.Duration
	metricsAddr string
	linger      time.Duration
	logLevel    string
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := pflag.NewFlagSet("kobjstress", pflag.ContinueOnError)
	fs.IntVarP(&o.producers, "producers", "p", 4, "number of goroutines calling up")
	fs.IntVarP(&o.consumers, "consumers", "c", 4, "number of goroutines calling down")
	fs.IntVarP(&o.signals, "signals", "n", 10000, "up calls per producer")
	fs.UintVar(&o.counter, "counter", 0, "initial semaphore counter")
	fs.DurationVarP(&o.timeout, "timeout", "t", 0, "down timeout, 0 waits forever")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	fs.DurationVar(&o.linger, "linger", 0, "keep serving metrics this long after the run")
	fs.StringVar(&o.logLevel, "log-level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.producers < 1 || o.consumers < 1 || o.signals < 0 {
		return o, errors.New("producers and consumers must be positive, signals not negative")
	}
	if o.timeout == 0 && o.counter > math.MaxInt32 {
		return o, errors.New("counter too large to drain without a timeout")
	}
	return o, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}

type result struct {
	accepted  int64
	successes int64
	timeouts  int64
	remaining uint
	elapsed   time.Duration
}

func (r result) consistent(initial uint) bool {
	return int64(initial)+r.accepted == r.successes+int64(r.remaining)
}

func stress(k *kobj.Kernel, o options) (result, error) {
	h, err := k.CreateSm(o.counter)
	if err != nil {
		return result{}, err
	}
	defer k.DestroySm(h)

	var (
		r         result
		successes atomic.Int64
		timeouts  atomic.Int64
		accepted  atomic.Int64
		stop      = make(chan struct{})
		consumers errgroup.Group
		producers errgroup.Group
	)

	// Without a timeout nobody can give up, so each consumer takes a fixed
	// share of everything that will be signalled.
	total := int(o.counter) + o.producers*o.signals
	start := time.Now()
	for i := range o.consumers {
		share := total / o.consumers
		if i < total%o.consumers {
			share++
		}
		consumers.Go(func() error {
			ec := k.NewEc()
			for n := 0; o.timeout != 0 || n < share; n++ {
				if o.timeout != 0 {
					select {
					case <-stop:
						return nil
					default:
					}
				}
				err := k.Down(ec, h, false, o.timeout)
				switch {
				case err == nil:
					successes.Add(1)
				case errors.Is(err, kobj.ErrTimeout):
					timeouts.Add(1)
				default:
					return err
				}
			}
			return nil
		})
	}
	for range o.producers {
		producers.Go(func() error {
			for range o.signals {
				err := k.Up(h)
				switch {
				case err == nil:
					accepted.Add(1)
				case errors.Is(err, kobj.ErrOverflow):
				default:
					return err
				}
			}
			return nil
		})
	}

	perr := producers.Wait()
	close(stop)
	cerr := consumers.Wait()
	if err := errors.Join(perr, cerr); err != nil {
		return r, err
	}

	s, _ := k.Lookup(h)
	r.accepted = accepted.Load()
	r.successes = successes.Load()
	r.timeouts = timeouts.Load()
	r.remaining = s.Counter()
	r.elapsed = time.Since(start)
	return r, nil
}

func run(args []string) error {
	o, err := parseFlags(args)
	if err != nil {
		return err
	}
	logger, err := newLogger(o.logLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	p := provider.NewPrometheusProvider("kobj", "stress")
	defer p.Stop()

	var srv *http.Server
	var wg sync.WaitGroup
	if o.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv = &http.Server{Addr: o.metricsAddr, Handler: mux}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	k := kobj.NewKernel(
		kobj.WithLogger(logger),
		kobj.WithMetrics(kobj.NewMetrics(p)),
	)
	defer k.Close()

	r, err := stress(k, o)
	if err != nil {
		return err
	}
	logger.Info("stress run finished",
		zap.Int("producers", o.producers),
		zap.Int("consumers", o.consumers),
		zap.Int64("accepted", r.accepted),
		zap.Int64("successes", r.successes),
		zap.Int64("timeouts", r.timeouts),
		zap.Uint("remaining", r.remaining),
		zap.Duration("elapsed", r.elapsed),
	)

	if srv != nil {
		time.Sleep(o.linger)
		_ = srv.Close()
		wg.Wait()
	}

	if !r.consistent(o.counter) {
		return fmt.Errorf("signals lost or duplicated: %d initial + %d accepted != %d consumed + %d remaining",
			o.counter, r.accepted, r.successes, r.remaining)
	}
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "kobjstress:", err)
		os.Exit(1)
	}
}
