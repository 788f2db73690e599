package gas

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/meridianswap/trade-engine/internal/adapters/chain"
	"github.com/meridianswap/trade-engine/internal/config"
	"github.com/meridianswap/trade-engine/internal/metrics"
)

const HEAD_CACHE_SERVICE = "chain-head-cache-svc"

// HeadSubscriber is invoked on every observed head advance.
type HeadSubscriber func(height uint64)

// HeadCacheService polls the chain head and fans advances out to
// subscribers. The engine uses advances to re-estimate gas for the current
// intent under fresh chain state.
type HeadCacheService struct {
	container.BaseDIInstance

	mu       sync.RWMutex
	client   chain.Client
	interval time.Duration
	height   uint64
	subs     []HeadSubscriber

	stop chan struct{}
	done chan struct{}
}

func (svc *HeadCacheService) ID() string {
	return HEAD_CACHE_SERVICE
}

func (svc *HeadCacheService) Configure(c container.IContainer) error {
	chainConfig := c.GetConfig(config.CHAIN_CONFIG_KEY).(*config.ChainConfig)

	if svc.client == nil {
		svc.client = chain.NewRPCClient(chainConfig.RPCUrl, 10*time.Second)
	}
	svc.interval = time.Duration(chainConfig.HeadPollIntervalMs) * time.Millisecond
	svc.stop = make(chan struct{})
	svc.done = make(chan struct{})
	return nil
}

func (svc *HeadCacheService) Start() error {
	ctx, cancel := context.WithTimeout(context.Background(), svc.interval)
	height, err := svc.client.BlockNumber(ctx)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("[HeadCacheService] failed to fetch initial head, will pick it up on next poll")
	} else {
		svc.setHeight(height)
	}

	go svc.pollLoop()
	log.Info().Dur("interval", svc.interval).Msg("[HeadCacheService] head polling started")
	return nil
}

func (svc *HeadCacheService) Stop() error {
	close(svc.stop)
	<-svc.done
	return nil
}

// Subscribe registers a callback for head advances. Callbacks run on the
// polling goroutine and must return quickly.
func (svc *HeadCacheService) Subscribe(fn HeadSubscriber) {
	svc.mu.Lock()
	svc.subs = append(svc.subs, fn)
	svc.mu.Unlock()
}

func (svc *HeadCacheService) Height() uint64 {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.height
}

// SetClient overrides the chain client; used before Configure in tests.
func (svc *HeadCacheService) SetClient(client chain.Client) {
	svc.client = client
}

func (svc *HeadCacheService) pollLoop() {
	defer close(svc.done)

	ticker := time.NewTicker(svc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-svc.stop:
			return
		case <-ticker.C:
			svc.poll()
		}
	}
}

func (svc *HeadCacheService) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), svc.interval)
	height, err := svc.client.BlockNumber(ctx)
	cancel()
	if err != nil {
		log.Warn().Err(err).Msg("[HeadCacheService] head poll failed")
		return
	}

	svc.mu.RLock()
	advanced := height > svc.height
	svc.mu.RUnlock()
	if !advanced {
		return
	}

	subs := svc.setHeight(height)
	for _, fn := range subs {
		fn(height)
	}
}

func (svc *HeadCacheService) setHeight(height uint64) []HeadSubscriber {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	if height <= svc.height && svc.height != 0 {
		return nil
	}
	svc.height = height
	metrics.HeadHeight.Set(float64(height))
	return svc.subs
}
