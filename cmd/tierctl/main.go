package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
)

// tierctl is the operator CLI for the tier coordinator: pool utilization,
// tier listing, and the destructive lifecycle operations.

const usage = `usage: tierctl [-addr URL] [-api-key KEY] COMMAND [args]

commands:
  pools                                   show pool utilization
  tiers                                   list tiers with state and leases
  create -tier NAME -pool POOL -size SIZE [-consistency strong|eventual]
  destroy -tier NAME
  disconnect -client CLIENT_ID
`

type cli struct {
	addr   string
	apiKey string
	client *http.Client
}

func main() {
	root := flag.NewFlagSet("tierctl", flag.ExitOnError)
	addr := root.String("addr", envOrDefault("TIERCTL_ADDR", "http://127.0.0.1:8080"), "coordinator base URL")
	apiKey := root.String("api-key", os.Getenv("TIERCTL_API_KEY"), "admin API key")
	root.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = root.Parse(os.Args[1:])

	args := root.Args()
	if len(args) == 0 {
		root.Usage()
		os.Exit(2)
	}

	c := &cli{
		addr:   strings.TrimSuffix(strings.TrimSpace(*addr), "/"),
		apiKey: strings.TrimSpace(*apiKey),
		client: &http.Client{Timeout: 10 * time.Second},
	}

	var err error
	switch args[0] {
	case "pools":
		err = c.pools()
	case "tiers":
		err = c.tiers()
	case "create":
		err = c.create(args[1:])
	case "destroy":
		err = c.destroy(args[1:])
	case "disconnect":
		err = c.disconnect(args[1:])
	default:
		root.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "tierctl: %v\n", err)
		os.Exit(1)
	}
}

func (c *cli) pools() error {
	var resp struct {
		Pools []struct {
			Name           string `json:"name"`
			CapacityBytes  int64  `json:"capacity_bytes"`
			AllocatedBytes int64  `json:"allocated_bytes"`
			FreeBytes      int64  `json:"free_bytes"`
		} `json:"pools"`
	}
	if err := c.getJSON("/v1/pools", &resp); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "POOL\tCAPACITY\tALLOCATED\tFREE")
	for _, pool := range resp.Pools {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			pool.Name,
			humanize.IBytes(uint64(pool.CapacityBytes)),
			humanize.IBytes(uint64(pool.AllocatedBytes)),
			humanize.IBytes(uint64(pool.FreeBytes)),
		)
	}
	return w.Flush()
}

func (c *cli) tiers() error {
	var resp struct {
		Tiers []struct {
			Name          string `json:"name"`
			PoolName      string `json:"pool_name"`
			ReservedBytes int64  `json:"reserved_bytes"`
			Consistency   string `json:"consistency"`
			State         string `json:"state"`
			LeaseCount    int    `json:"lease_count"`
		} `json:"tiers"`
	}
	if err := c.getJSON("/v1/tiers", &resp); err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIER\tPOOL\tRESERVED\tCONSISTENCY\tSTATE\tLEASES")
	for _, info := range resp.Tiers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			info.Name,
			info.PoolName,
			humanize.IBytes(uint64(info.ReservedBytes)),
			info.Consistency,
			info.State,
			info.LeaseCount,
		)
	}
	return w.Flush()
}

func (c *cli) create(args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	tierName := fs.String("tier", "", "tier name")
	poolName := fs.String("pool", "", "backing pool name")
	size := fs.String("size", "", "reservation size, e.g. 32MiB")
	consistency := fs.String("consistency", "eventual", "consistency level")
	_ = fs.Parse(args)

	if *tierName == "" || *poolName == "" || *size == "" {
		return fmt.Errorf("create requires -tier, -pool and -size")
	}
	sizeBytes, err := humanize.ParseBytes(*size)
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", *size, err)
	}

	payload := map[string]any{
		"tier_name":   *tierName,
		"pool_name":   *poolName,
		"size_bytes":  int64(sizeBytes),
		"consistency": *consistency,
	}
	if err := c.do(http.MethodPost, "/v1/tiers", payload, http.StatusCreated); err != nil {
		return err
	}
	fmt.Printf("tier %s created (%s from %s)\n", *tierName, humanize.IBytes(sizeBytes), *poolName)
	return nil
}

func (c *cli) destroy(args []string) error {
	fs := flag.NewFlagSet("destroy", flag.ExitOnError)
	tierName := fs.String("tier", "", "tier name")
	_ = fs.Parse(args)

	if *tierName == "" {
		return fmt.Errorf("destroy requires -tier")
	}
	if err := c.do(http.MethodDelete, "/v1/tiers/"+*tierName, nil, http.StatusNoContent); err != nil {
		return err
	}
	fmt.Printf("tier %s destroyed\n", *tierName)
	return nil
}

func (c *cli) disconnect(args []string) error {
	fs := flag.NewFlagSet("disconnect", flag.ExitOnError)
	clientID := fs.String("client", "", "client id")
	_ = fs.Parse(args)

	if *clientID == "" {
		return fmt.Errorf("disconnect requires -client")
	}
	if err := c.do(http.MethodPost, "/v1/disconnect", map[string]string{"client_id": *clientID}, http.StatusNoContent); err != nil {
		return err
	}
	fmt.Printf("client %s disconnected\n", *clientID)
	return nil
}

func (c *cli) getJSON(path string, value any) error {
	req, err := http.NewRequest(http.MethodGet, c.addr+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(value)
}

func (c *cli) do(method, path string, payload any, wantStatus int) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.addr+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return apiError(resp)
	}
	return nil
}

func apiError(resp *http.Response) error {
	raw, _ := io.ReadAll(resp.Body)
	var envelope struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Code != "" {
		return fmt.Errorf("%s: %s", envelope.Code, envelope.Message)
	}
	return fmt.Errorf("coordinator returned status %d", resp.StatusCode)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
