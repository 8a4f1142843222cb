package config

import "testing"

func TestValidateRejectsMissingDatabaseHost(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{DBName: "catalog"},
		Catalog:  CatalogConfig{StorageRoot: "/data"},
		Cache:    CacheConfig{Type: "memory"},
		Server:   ServerConfig{Port: 8080},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for missing database host")
	}
}

func TestValidateRejectsInvalidCacheType(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Host: "localhost", DBName: "catalog"},
		Catalog:  CatalogConfig{StorageRoot: "/data"},
		Cache:    CacheConfig{Type: "memcached"},
		Server:   ServerConfig{Port: 8080},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for invalid cache type")
	}
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Host: "localhost", DBName: "catalog"},
		Catalog:  CatalogConfig{StorageRoot: "/data"},
		Cache:    CacheConfig{Type: "memory"},
		Server:   ServerConfig{Port: 99999},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for out-of-range port")
	}
}

func TestValidateAcceptsMinimalValidConfig(t *testing.T) {
	cfg := &Config{
		Database: DatabaseConfig{Host: "localhost", DBName: "catalog"},
		Catalog:  CatalogConfig{StorageRoot: "/data"},
		Cache:    CacheConfig{Type: "redis"},
		Server:   ServerConfig{Port: 8080},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected a valid config to pass, got %v", err)
	}
}

func TestGetEnvListTrimsAndDropsEmptyEntries(t *testing.T) {
	t.Setenv("TEST_LIST_KEY", "a, b ,, c")
	got := getEnvList("TEST_LIST_KEY", nil)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestGetEnvListFallsBackWhenUnset(t *testing.T) {
	got := getEnvList("TEST_LIST_KEY_UNSET", []string{"default"})
	if len(got) != 1 || got[0] != "default" {
		t.Fatalf("expected fallback [\"default\"], got %v", got)
	}
}
