package app

import (
	"reflect"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{
		"HTTP_ADDR", "MONGO_URI", "MONGO_DB", "LOG_LEVEL",
		"PART_BUDGET_BYTES", "QUICKSTART_PARTS", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(key, "")
	}

	cfg := LoadConfig()
	if cfg.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.MongoDatabase != "mediastream" || cfg.MongoCollection != "assets" {
		t.Fatalf("mongo defaults: %q/%q", cfg.MongoDatabase, cfg.MongoCollection)
	}
	if cfg.PartBudgetBytes != 2<<30 {
		t.Fatalf("PartBudgetBytes = %d", cfg.PartBudgetBytes)
	}
	if cfg.SegmentSeconds != 2 || cfg.QuickStartParts != 5 {
		t.Fatalf("segment defaults: %d/%d", cfg.SegmentSeconds, cfg.QuickStartParts)
	}
	if cfg.ResolveTTLSeconds != 3600 || cfg.ResolveCacheSize != 1000 {
		t.Fatalf("resolve defaults: %d/%d", cfg.ResolveTTLSeconds, cfg.ResolveCacheSize)
	}
	if cfg.AllowedOrigins != nil {
		t.Fatalf("AllowedOrigins should default to nil, got %v", cfg.AllowedOrigins)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("PART_BUDGET_BYTES", "1048576")
	t.Setenv("QUICKSTART_PARTS", "2")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg := LoadConfig()
	if cfg.HTTPAddr != ":9999" {
		t.Fatalf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("LogLevel = %q, want lowercased", cfg.LogLevel)
	}
	if cfg.PartBudgetBytes != 1048576 {
		t.Fatalf("PartBudgetBytes = %d", cfg.PartBudgetBytes)
	}
	if cfg.QuickStartParts != 2 {
		t.Fatalf("QuickStartParts = %d", cfg.QuickStartParts)
	}
	want := []string{"https://a.example", "https://b.example"}
	if !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Fatalf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
	}
}

func TestGetEnvInt64BadValues(t *testing.T) {
	cases := map[string]string{
		"not a number": "abc",
		"negative":     "-5",
		"blank":        "   ",
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("TEST_INT_VALUE", value)
			if got := getEnvInt64("TEST_INT_VALUE", 42); got != 42 {
				t.Fatalf("got %d, want fallback 42", got)
			}
		})
	}
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"  ", nil},
		{"a", []string{"a"}},
		{"a,b", []string{"a", "b"}},
		{" a , ,b, ", []string{"a", "b"}},
	}
	for _, tc := range cases {
		if got := splitCSV(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("splitCSV(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
