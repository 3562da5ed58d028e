package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
)

// CountHandler receives a head count read for a room.
type CountHandler func(room int, count int)

// CounterPoller reads people counters over HTTP on a schedule.  Each source
// answers GET with a plain integer body.
type CounterPoller struct {
	Sources   []CounterSource `mapstructure:"sources"`
	Frequency int64           `mapstructure:"frequency"`
	Workers   int             `mapstructure:"workers"`
	Enabled   bool            `mapstructure:"enabled"`

	client  *http.Client
	handler CountHandler
	pool    *workerpool.WorkerPool
	ticker  *time.Ticker
	done    chan struct{}
	wg      sync.WaitGroup
}

type CounterSource struct {
	Url  string `mapstructure:"url"`
	Room int    `mapstructure:"room"`
}

// MakeCounterPoller loads the counters section of the config.
func MakeCounterPoller(handler CountHandler) (*CounterPoller, error) {
	cp := &CounterPoller{handler: handler, client: &http.Client{Timeout: 10 * time.Second}}
	if err := Config.UnmarshalKey("counters", cp); err != nil {
		Logger.Error().Msgf("Error loading counters config: %v", err)
		return nil, fmt.Errorf("load counters config: %w", err)
	}
	if cp.Workers < 1 {
		cp.Workers = 1
	}
	if cp.Frequency < 1 {
		cp.Frequency = 30
	}
	return cp, nil
}

func (cp *CounterPoller) Start() {
	if !cp.Enabled || len(cp.Sources) == 0 {
		Logger.Debug().Msg("counter poller disabled")
		return
	}
	cp.pool = workerpool.New(cp.Workers)
	cp.ticker = time.NewTicker(time.Duration(cp.Frequency) * time.Second)
	cp.done = make(chan struct{})
	cp.wg.Add(1)
	go func() {
		defer cp.wg.Done()
		for {
			select {
			case <-cp.ticker.C:
				cp.PollOnce()
			case <-cp.done:
				return
			}
		}
	}()
}

// PollOnce queues one read of every source.  Without a running pool the
// reads happen inline.
func (cp *CounterPoller) PollOnce() {
	for _, source := range cp.Sources {
		source := source
		if cp.pool == nil {
			cp.poll(source)
			continue
		}
		cp.pool.Submit(func() {
			cp.poll(source)
		})
	}
}

func (cp *CounterPoller) Stop() {
	if cp.done == nil {
		return
	}
	cp.ticker.Stop()
	close(cp.done)
	cp.wg.Wait()
	cp.pool.StopWait()
	cp.done = nil
}

func (cp *CounterPoller) poll(source CounterSource) {
	count, err := cp.read(context.Background(), source.Url)
	if err != nil {
		Logger.Warn().Msgf("Unable to read counter for room %d: %v", source.Room, err)
		return
	}
	Logger.Debug().Msgf("room %d counter reads %d", source.Room, count)
	if cp.handler != nil {
		cp.handler(source.Room, count)
	}
}

func (cp *CounterPoller) read(ctx context.Context, url string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("Accept", "text/plain")
	client := cp.client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", url, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			Logger.Error().Msgf("Error closing response body: %v", closeErr)
		}
	}()
	if resp.StatusCode > 299 || resp.StatusCode < 200 {
		return 0, fmt.Errorf("non-2xx code received from %s: %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return 0, fmt.Errorf("read body from %s: %w", url, err)
	}
	return ParseCount(body)
}
