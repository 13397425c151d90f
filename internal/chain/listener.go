package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tidwall/gjson"

	"github.com/chaintrace/registry/internal/events"
	"github.com/chaintrace/registry/internal/registry"
	"github.com/chaintrace/registry/pkg/logger"
)

// resyncDepth is how many blocks the scheduled resync rewinds the
// checkpoint, covering notifications missed around node hiccups.
const resyncDepth = 16

// Listener tails the chain for registry contract notifications and
// republishes them as lifecycle events. It never writes product state;
// the contract is the source of truth and the listener only observes.
type Listener struct {
	mu sync.RWMutex

	client       *Client
	contractHash string
	pub          events.Publisher
	log          *logger.Logger

	pollInterval time.Duration
	lastHeight   uint64

	cron    *cron.Cron
	running bool
	done    chan struct{}
}

// ListenerConfig holds listener configuration.
type ListenerConfig struct {
	ContractHash string
	PollInterval time.Duration
	// ResyncSchedule is a cron expression for checkpoint resync.
	// Empty disables resync.
	ResyncSchedule string
}

// NewListener creates a notification listener for the registry contract.
func NewListener(client *Client, cfg ListenerConfig, pub events.Publisher, log *logger.Logger) (*Listener, error) {
	if cfg.ContractHash == "" {
		return nil, fmt.Errorf("contract hash required")
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if pub == nil {
		pub = events.Discard{}
	}
	if log == nil {
		log = logger.NewDefault("chain")
	}

	l := &Listener{
		client:       client,
		contractHash: cfg.ContractHash,
		pub:          pub,
		log:          log.WithField("component", "chain_listener"),
		pollInterval: cfg.PollInterval,
		done:         make(chan struct{}),
	}

	if cfg.ResyncSchedule != "" {
		l.cron = cron.New()
		if _, err := l.cron.AddFunc(cfg.ResyncSchedule, l.resync); err != nil {
			return nil, fmt.Errorf("resync schedule: %w", err)
		}
	}

	return l, nil
}

// Start begins tailing from the current chain height.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return fmt.Errorf("listener already running")
	}
	l.running = true
	l.done = make(chan struct{})
	l.mu.Unlock()

	height, err := l.client.GetBlockCount(ctx)
	if err != nil {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		return fmt.Errorf("initial block height: %w", err)
	}
	l.setHeight(height)

	l.log.WithFields(map[string]interface{}{
		"contract":      l.contractHash,
		"start_height":  height,
		"poll_interval": l.pollInterval.String(),
	}).Info("listener started")

	if l.cron != nil {
		l.cron.Start()
	}
	go l.tailLoop(ctx)
	return nil
}

// Stop stops the listener.
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return
	}
	l.running = false
	close(l.done)
	if l.cron != nil {
		l.cron.Stop()
	}
	l.log.Info("listener stopped")
}

// IsRunning returns true if the listener is running.
func (l *Listener) IsRunning() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.running
}

func (l *Listener) setHeight(h uint64) {
	l.mu.Lock()
	l.lastHeight = h
	l.mu.Unlock()
}

func (l *Listener) height() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastHeight
}

// resync rewinds the checkpoint so the next poll re-scans recent blocks.
// Publishing is idempotent for consumers, so duplicates are acceptable.
func (l *Listener) resync() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lastHeight > resyncDepth {
		l.lastHeight -= resyncDepth
	} else {
		l.lastHeight = 0
	}
	l.log.WithField("height", l.lastHeight).Debug("checkpoint rewound for resync")
}

func (l *Listener) tailLoop(ctx context.Context) {
	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case <-ticker.C:
			if err := l.scanNewBlocks(ctx); err != nil {
				l.log.WithError(err).Warn("block scan failed")
			}
		}
	}
}

func (l *Listener) scanNewBlocks(ctx context.Context) error {
	tip, err := l.client.GetBlockCount(ctx)
	if err != nil {
		return err
	}

	from := l.height()
	for h := from; h < tip; h++ {
		if err := l.scanBlock(ctx, h); err != nil {
			return fmt.Errorf("block %d: %w", h, err)
		}
		l.setHeight(h + 1)
	}
	return nil
}

func (l *Listener) scanBlock(ctx context.Context, index uint64) error {
	raw, err := l.client.GetBlockRaw(ctx, index)
	if err != nil {
		return err
	}

	for _, hash := range gjson.GetBytes(raw, "tx.#.hash").Array() {
		if err := l.scanTransaction(ctx, hash.String()); err != nil {
			return err
		}
	}
	return nil
}

// scanTransaction pulls the transaction application log and checks it for
// registry contract notifications before decoding any stack items.
func (l *Listener) scanTransaction(ctx context.Context, txHash string) error {
	raw, err := l.client.GetApplicationLogRaw(ctx, txHash)
	if err != nil {
		return err
	}

	touches := false
	gjson.GetBytes(raw, "executions.#.notifications.#.contract").ForEach(func(_, block gjson.Result) bool {
		block.ForEach(func(_, contract gjson.Result) bool {
			if equalHash(contract.String(), l.contractHash) {
				touches = true
			}
			return !touches
		})
		return !touches
	})
	if !touches {
		return nil
	}

	var appLog ApplicationLog
	if err := json.Unmarshal(raw, &appLog); err != nil {
		return fmt.Errorf("decode application log: %w", err)
	}
	l.publishFromLog(txHash, &appLog)
	return nil
}

func (l *Listener) publishFromLog(txHash string, appLog *ApplicationLog) {
	for _, exec := range appLog.Executions {
		if exec.VMState != "HALT" {
			continue
		}
		for _, n := range exec.Notifications {
			if !equalHash(n.Contract, l.contractHash) {
				continue
			}
			switch n.EventName {
			case EventProductMinted:
				ev, err := ParseProductMinted(n)
				if err != nil {
					l.log.WithError(err).WithField("tx", txHash).Warn("bad ProductMinted notification")
					continue
				}
				l.pub.Publish(events.Event{
					Type:      events.TypeProductCreated,
					ProductID: ev.ProductID,
					Status:    registry.StatusCreated.String(),
					Owner:     ev.Owner,
					TxHash:    txHash,
				})
			case EventProductStatusChanged:
				ev, err := ParseProductStatusChanged(n)
				if err != nil {
					l.log.WithError(err).WithField("tx", txHash).Warn("bad ProductStatusChanged notification")
					continue
				}
				l.pub.Publish(events.Event{
					Type:      statusEventType(ev.Status),
					ProductID: ev.ProductID,
					Status:    ev.Status.String(),
					TxHash:    txHash,
				})
			}
		}
	}
}

// equalHash compares script hashes ignoring case and 0x prefixes.
func equalHash(a, b string) bool {
	a = strings.TrimPrefix(strings.ToLower(a), "0x")
	b = strings.TrimPrefix(strings.ToLower(b), "0x")
	return a == b
}

func statusEventType(s registry.Status) events.Type {
	switch s {
	case registry.StatusVerified:
		return events.TypeProductVerified
	case registry.StatusFinalized:
		return events.TypeProductFinalized
	default:
		return events.TypeProductCreated
	}
}
