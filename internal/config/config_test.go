package config

import "testing"

func TestParsePools(t *testing.T) {
	pools, err := parsePools("primary-server-resource=64MB, secondary-server-resource=128MiB")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(pools) != 2 {
		t.Fatalf("expected 2 pools, got %d", len(pools))
	}
	if pools[0].Name != "primary-server-resource" || pools[0].CapacityBytes != 64*1000*1000 {
		t.Fatalf("unexpected first pool: %+v", pools[0])
	}
	if pools[1].CapacityBytes != 128*1024*1024 {
		t.Fatalf("unexpected second pool capacity: %d", pools[1].CapacityBytes)
	}
}

func TestParsePoolsRejectsBadSpecs(t *testing.T) {
	cases := []string{
		"",
		"primary",
		"=64MB",
		"primary=64MB,primary=32MB",
		"primary=sixty-four",
		"primary=0",
	}
	for _, raw := range cases {
		if _, err := parsePools(raw); err == nil {
			t.Errorf("expected error for %q", raw)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("expected default addr, got %q", cfg.HTTPAddr)
	}
	if len(cfg.Pools) != 2 {
		t.Fatalf("expected default pools, got %v", cfg.Pools)
	}
}
