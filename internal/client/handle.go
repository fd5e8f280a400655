package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"

	"github.com/VenkatGGG/tiercoord/internal/resource"
	"github.com/VenkatGGG/tiercoord/internal/tier"
	"github.com/VenkatGGG/tiercoord/pkg/httpx"
)

// ErrNotAttached reports a data-path request the coordinator rejected
// because this client no longer holds a lease.
var ErrNotAttached = errors.New("not attached to tier")

// errNoSuchEntry is the wire form of an entry miss; the cache proxy turns
// it back into a plain "not found" result.
var errNoSuchEntry = errors.New("no such entry")

type Options struct {
	// ClientID is generated when empty.
	ClientID    string
	AdminAPIKey string
	HTTPTimeout time.Duration
	// DisableStream skips the push-notification socket; stale tiers are then
	// discovered on the next operation instead.
	DisableStream bool
	Logger        *log.Logger
}

// Handle is one client process's connection to the coordinator. It
// multiplexes any number of tier attachments over the one identity and
// surfaces coordinator-pushed revocations by closing the matching local
// cache.
type Handle struct {
	baseURL     string
	clientID    string
	adminAPIKey string
	httpClient  *http.Client
	logger      *log.Logger

	mu     sync.Mutex
	caches map[string]*Cache

	conn       *websocket.Conn
	streamDone chan struct{}
}

type CreateTierInput struct {
	TierName    string
	PoolName    string
	SizeBytes   int64
	Consistency tier.Consistency
}

type streamEvent struct {
	Type     string `json:"type"`
	TierName string `json:"tier_name"`
	ClientID string `json:"client_id,omitempty"`
}

func Connect(ctx context.Context, baseURL string, opts Options) (*Handle, error) {
	trimmed := strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("coordinator base url is required")
	}

	clientID := strings.TrimSpace(opts.ClientID)
	if clientID == "" {
		clientID = "client-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	timeout := opts.HTTPTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	h := &Handle{
		baseURL:     trimmed,
		clientID:    clientID,
		adminAPIKey: strings.TrimSpace(opts.AdminAPIKey),
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
		caches:      make(map[string]*Cache),
	}

	if !opts.DisableStream {
		streamURL := trimmed + "/v1/stream?client_id=" + url.QueryEscape(clientID)
		conn, _, err := websocket.Dial(ctx, streamURL, nil)
		if err != nil {
			// best-effort channel: fall back to discovering stale state on use
			logger.Printf("push stream unavailable, falling back to lazy discovery: %v", err)
		} else {
			h.conn = conn
			h.streamDone = make(chan struct{})
			go h.readStream(conn)
		}
	}

	return h, nil
}

func (h *Handle) ClientID() string {
	return h.clientID
}

func (h *Handle) CreateTier(ctx context.Context, input CreateTierInput) error {
	payload := map[string]any{
		"tier_name":   input.TierName,
		"pool_name":   input.PoolName,
		"size_bytes":  input.SizeBytes,
		"consistency": string(input.Consistency),
	}
	resp, err := h.doJSON(ctx, http.MethodPost, "/v1/tiers", payload, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return decodeAPIError(resp)
	}
	return nil
}

// Attach acquires a lease on the tier and returns the local cache proxy for
// it. Re-attaching a tier this handle already holds returns a fresh proxy;
// the previous one keeps working against the same lease.
func (h *Handle) Attach(ctx context.Context, tierName string) (*Cache, error) {
	name := strings.TrimSpace(tierName)
	if name == "" {
		return nil, errors.New("tier name is required")
	}

	resp, err := h.doJSON(ctx, http.MethodPost, "/v1/tiers/"+url.PathEscape(name)+"/attach", map[string]string{"client_id": h.clientID}, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var attached struct {
		Tier tier.Info `json:"tier"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&attached); err != nil {
		return nil, fmt.Errorf("decode attach response: %w", err)
	}

	cache := newCache(h, name, attached.Tier.Consistency)
	h.mu.Lock()
	if previous, ok := h.caches[name]; ok {
		previous.markUninitialized()
	}
	h.caches[name] = cache
	h.mu.Unlock()

	return cache, nil
}

// Detach closes the local cache for the tier and releases this handle's
// lease. Detaching a tier that was never attached is a no-op.
func (h *Handle) Detach(ctx context.Context, tierName string) error {
	name := strings.TrimSpace(tierName)
	if name == "" {
		return errors.New("tier name is required")
	}
	h.closeLocal(name)

	resp, err := h.doJSON(ctx, http.MethodPost, "/v1/tiers/"+url.PathEscape(name)+"/detach", map[string]string{"client_id": h.clientID}, false)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return decodeAPIError(resp)
	}
	return nil
}

// DestroyTier asks the coordinator to destroy the tier. If this handle is
// attached it detaches first, so its own lease never blocks the destroy;
// after a busy rejection the local cache therefore stays closed while other
// clients' caches keep working.
func (h *Handle) DestroyTier(ctx context.Context, tierName string) error {
	name := strings.TrimSpace(tierName)
	if name == "" {
		return errors.New("tier name is required")
	}

	if h.hasLocal(name) {
		if err := h.Detach(ctx, name); err != nil {
			return fmt.Errorf("detach before destroy: %w", err)
		}
	}

	resp, err := h.doJSON(ctx, http.MethodDelete, "/v1/tiers/"+url.PathEscape(name), nil, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return decodeAPIError(resp)
	}
	return nil
}

// ForceDisconnect releases every lease held by some other client identity,
// as if that client's connection had dropped. Operator tooling; requires
// the admin key when the coordinator has one configured.
func (h *Handle) ForceDisconnect(ctx context.Context, clientID string) error {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return errors.New("client id is required")
	}

	resp, err := h.doJSON(ctx, http.MethodPost, "/v1/disconnect", map[string]string{"client_id": clientID}, true)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return decodeAPIError(resp)
	}
	return nil
}

// Close releases every lease this handle holds and tears down the stream.
func (h *Handle) Close(ctx context.Context) error {
	h.mu.Lock()
	for _, cache := range h.caches {
		cache.markUninitialized()
	}
	h.caches = make(map[string]*Cache)
	h.mu.Unlock()

	resp, err := h.doJSON(ctx, http.MethodPost, "/v1/disconnect", map[string]string{"client_id": h.clientID}, false)
	if err == nil {
		resp.Body.Close()
	}

	if h.conn != nil {
		_ = h.conn.Close(websocket.StatusNormalClosure, "")
		select {
		case <-h.streamDone:
		case <-ctx.Done():
		}
	}
	return err
}

func (h *Handle) readStream(conn *websocket.Conn) {
	defer close(h.streamDone)
	for {
		_, raw, err := conn.Read(context.Background())
		if err != nil {
			return
		}
		var event streamEvent
		if err := json.Unmarshal(raw, &event); err != nil {
			h.logger.Printf("stream decode failed: %v", err)
			continue
		}
		switch event.Type {
		case "tier_destroyed", "lease_revoked":
			if h.closeLocal(event.TierName) {
				h.logger.Printf("tier invalidated by coordinator: tier=%s event=%s", event.TierName, event.Type)
			}
		}
	}
}

func (h *Handle) hasLocal(tierName string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.caches[tierName]
	return ok
}

func (h *Handle) closeLocal(tierName string) bool {
	h.mu.Lock()
	cache, ok := h.caches[tierName]
	if ok {
		delete(h.caches, tierName)
	}
	h.mu.Unlock()

	if ok {
		cache.markUninitialized()
	}
	return ok
}

func (h *Handle) doJSON(ctx context.Context, method, path string, payload any, admin bool) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Client-ID", h.clientID)
	if admin && h.adminAPIKey != "" {
		req.Header.Set("X-API-Key", h.adminAPIKey)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coordinator request %s %s: %w", method, path, err)
	}
	return resp, nil
}

// doRaw issues a data-path request: raw body, client identity in the
// X-Client-ID header.
func (h *Handle) doRaw(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Client-ID", h.clientID)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("coordinator request %s %s: %w", method, path, err)
	}
	return resp, nil
}

// decodeAPIError turns a coordinator error envelope back into the lifecycle
// error taxonomy so callers can use errors.Is across the wire.
func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	var envelope httpx.ErrorResponse
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Code == "" {
		return fmt.Errorf("coordinator returned status %d", resp.StatusCode)
	}

	switch envelope.Code {
	case "no_such_entry":
		return errNoSuchEntry
	case "tier_busy":
		return fmt.Errorf("%w: %s", tier.ErrTierBusy, envelope.Message)
	case "already_exists":
		return fmt.Errorf("%w: %s", tier.ErrTierExists, envelope.Message)
	case "not_found":
		return fmt.Errorf("%w: %s", tier.ErrTierNotFound, envelope.Message)
	case "pool_not_found":
		return fmt.Errorf("%w: %s", resource.ErrPoolNotFound, envelope.Message)
	case "insufficient_resource":
		return fmt.Errorf("%w: %s", resource.ErrInsufficientCapacity, envelope.Message)
	case "not_attached":
		return fmt.Errorf("%w: %s", ErrNotAttached, envelope.Message)
	default:
		return fmt.Errorf("%s: %s", envelope.Code, envelope.Message)
	}
}
