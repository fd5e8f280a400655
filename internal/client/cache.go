package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/VenkatGGG/tiercoord/internal/tier"
)

// ErrCacheUninitialized reports an operation against a local cache whose
// tier was destroyed or whose lease was revoked. It is terminal for the
// proxy: the handle must re-attach to get a working cache again.
var ErrCacheUninitialized = errors.New("cache is uninitialized")

const eventualQueueSize = 256

type pendingWrite struct {
	key   string
	value string
	// flushed is non-nil only for flush barriers
	flushed chan struct{}
}

// Cache is the local proxy for one attached tier. Under strong consistency
// every operation waits for the coordinator's ack; under eventual
// consistency puts are acknowledged locally and flushed in the background.
type Cache struct {
	handle      *Handle
	tierName    string
	consistency tier.Consistency

	mu          sync.Mutex
	initialized bool

	pending chan pendingWrite
	done    chan struct{}
}

func newCache(h *Handle, tierName string, consistency tier.Consistency) *Cache {
	c := &Cache{
		handle:      h,
		tierName:    tierName,
		consistency: consistency,
		initialized: true,
	}
	if consistency == tier.ConsistencyEventual {
		c.pending = make(chan pendingWrite, eventualQueueSize)
		c.done = make(chan struct{})
		go c.flushLoop()
	}
	return c
}

func (c *Cache) TierName() string {
	return c.tierName
}

func (c *Cache) Consistency() tier.Consistency {
	return c.consistency
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	if err := c.ensureInitialized(); err != nil {
		return "", false, err
	}

	resp, err := c.handle.doRaw(ctx, http.MethodGet, c.entryPath(key), nil)
	if err != nil {
		return "", false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", false, fmt.Errorf("read entry: %w", err)
		}
		return string(raw), true, nil
	default:
		err := decodeAPIError(resp)
		if errors.Is(err, errNoSuchEntry) {
			return "", false, nil
		}
		return "", false, c.translateDataPathError(err)
	}
}

func (c *Cache) Put(ctx context.Context, key, value string) error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}

	if c.consistency == tier.ConsistencyEventual {
		select {
		case c.pending <- pendingWrite{key: key, value: value}:
			return nil
		case <-c.done:
			return ErrCacheUninitialized
		default:
			// queue full: degrade to a synchronous write
		}
	}
	return c.putOnce(ctx, key, value)
}

func (c *Cache) Remove(ctx context.Context, key string) error {
	if err := c.ensureInitialized(); err != nil {
		return err
	}

	resp, err := c.handle.doRaw(ctx, http.MethodDelete, c.entryPath(key), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return c.translateDataPathError(decodeAPIError(resp))
	}
	return nil
}

// Flush blocks until every put accepted so far has been acknowledged by the
// coordinator. A no-op under strong consistency.
func (c *Cache) Flush(ctx context.Context) error {
	if c.consistency != tier.ConsistencyEventual {
		return nil
	}
	if err := c.ensureInitialized(); err != nil {
		return err
	}

	barrier := make(chan struct{})
	select {
	case c.pending <- pendingWrite{flushed: barrier}:
	case <-c.done:
		return ErrCacheUninitialized
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-barrier:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Cache) flushLoop() {
	for {
		select {
		case write := <-c.pending:
			if write.flushed != nil {
				close(write.flushed)
				continue
			}
			if err := c.putOnce(context.Background(), write.key, write.value); err != nil {
				c.handle.logger.Printf("eventual write dropped: tier=%s key=%s err=%v", c.tierName, write.key, err)
			}
		case <-c.done:
			// drain barriers so no Flush caller hangs on shutdown
			for {
				select {
				case write := <-c.pending:
					if write.flushed != nil {
						close(write.flushed)
					}
				default:
					return
				}
			}
		}
	}
}

func (c *Cache) putOnce(ctx context.Context, key, value string) error {
	resp, err := c.handle.doRaw(ctx, http.MethodPut, c.entryPath(key), strings.NewReader(value))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return c.translateDataPathError(decodeAPIError(resp))
	}
	return nil
}

func (c *Cache) ensureInitialized() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return ErrCacheUninitialized
	}
	return nil
}

func (c *Cache) markUninitialized() {
	c.mu.Lock()
	wasInitialized := c.initialized
	c.initialized = false
	c.mu.Unlock()

	if wasInitialized && c.done != nil {
		close(c.done)
	}
}

// translateDataPathError converts "tier gone" and "lease revoked" rejections
// into the local uninitialized state, so a handle that missed the push
// notification still fails explicitly instead of seeing stale data.
func (c *Cache) translateDataPathError(err error) error {
	if errors.Is(err, tier.ErrTierNotFound) || errors.Is(err, ErrNotAttached) {
		c.markUninitialized()
		return fmt.Errorf("%w: %s", ErrCacheUninitialized, err)
	}
	return err
}

func (c *Cache) entryPath(key string) string {
	return "/v1/tiers/" + url.PathEscape(c.tierName) + "/entries/" + url.PathEscape(key)
}
