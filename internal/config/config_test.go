package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

// validEnv sets the minimum environment Load accepts.
func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "test-secret")
}

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	validEnv(t)
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "api/v1/") // -> "/api/v1"

	t.Setenv("DB_PATH", "db.sqlite")
	t.Setenv("CATALOG_SEED_PATH", "catalog.yaml")
	t.Setenv("MAX_BODY_RUNES", "1200")

	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10

	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("AUTH_DEV_HEADERS", "off")
	t.Setenv("SESSION_IDLE_TIMEOUT", "90s")
	t.Setenv("SESSION_BUFFER", "16")
	t.Setenv("DELIVERY_RETRIES", "5")
	t.Setenv("DELIVERY_BACKOFF", "10ms")
	t.Setenv("WS_PING_PERIOD", "20s")

	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging/docs fields unexpected: %+v", cfg)
	}
	if cfg.DBPath != "db.sqlite" || cfg.CatalogSeedPath != "catalog.yaml" || cfg.MaxBodyRunes != 1200 {
		t.Fatalf("storage fields unexpected: %+v", cfg)
	}
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate fields should fall back to defaults, got rps=%v burst=%v", cfg.RateRPS, cfg.RateBurst)
	}
	if want := []string{"https://a.com", "http://b"}; !reflect.DeepEqual(cfg.CORS.AllowedOrigins, want) {
		t.Fatalf("CORS origins = %#v; want %#v", cfg.CORS.AllowedOrigins, want)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security fields unexpected: %+v", cfg.Security)
	}
	if cfg.Auth.JWTSecret != "s3cret" || cfg.Auth.DevHeaders {
		t.Fatalf("auth fields unexpected: %+v", cfg.Auth)
	}
	wantRT := RealtimeConfig{
		SessionIdleTimeout: 90 * time.Second,
		SessionBuffer:      16,
		DeliveryRetries:    5,
		DeliveryBackoff:    10 * time.Millisecond,
		PingPeriod:         20 * time.Second,
	}
	if cfg.Realtime != wantRT {
		t.Fatalf("realtime = %+v; want %+v", cfg.Realtime, wantRT)
	}
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure ||
		cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel fields unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	validEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Port != "8080" || cfg.APIBasePath != "/api/v1" || cfg.DBPath != "messaging.db" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxBodyRunes != 4000 {
		t.Fatalf("MaxBodyRunes default = %d", cfg.MaxBodyRunes)
	}
	if cfg.Realtime.SessionIdleTimeout != 2*time.Minute || cfg.Realtime.PingPeriod != 30*time.Second ||
		cfg.Realtime.SessionBuffer != 64 || cfg.Realtime.DeliveryRetries != 3 ||
		cfg.Realtime.DeliveryBackoff != 50*time.Millisecond {
		t.Fatalf("unexpected realtime defaults: %+v", cfg.Realtime)
	}
	if cfg.OTEL.ServiceName != "homefinder-messaging" {
		t.Fatalf("service name default = %q", cfg.OTEL.ServiceName)
	}
}

func TestLoad_DevHeadersWithoutSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("AUTH_DEV_HEADERS", "true")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.Auth.DevHeaders {
		t.Fatalf("expected dev headers enabled")
	}
}

// --- validation errors ---

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad log level", map[string]string{"LOG_LEVEL": "loud"}, "LOG_LEVEL"},
		{"empty port", map[string]string{"PORT": " "}, "PORT"},
		{"negative timeout", map[string]string{"READ_TIMEOUT": "-1s"}, "timeouts"},
		{"zero header bytes", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"blank db path", map[string]string{"DB_PATH": " "}, "DB_PATH"},
		{"zero body runes", map[string]string{"MAX_BODY_RUNES": "0"}, "MAX_BODY_RUNES"},
		{"negative rps", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"zero burst", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"negative hsts", map[string]string{"HSTS_MAX_AGE": "-1h"}, "HSTS_MAX_AGE"},
		{"missing secret", map[string]string{"JWT_SECRET": "", "AUTH_DEV_HEADERS": "no"}, "JWT_SECRET"},
		{"ping above idle", map[string]string{"WS_PING_PERIOD": "5m"}, "WS_PING_PERIOD"},
		{"zero buffer", map[string]string{"SESSION_BUFFER": "0"}, "SESSION_BUFFER"},
		{"zero retries", map[string]string{"DELIVERY_RETRIES": "0"}, "DELIVERY_RETRIES"},
		{"negative idle", map[string]string{"SESSION_IDLE_TIMEOUT": "-1s"}, "realtime"},
		{"sampler out of range", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			validEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

// --- helpers ---

func TestGetboolVariants(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", "y", "On"} {
		t.Setenv("X_BOOL", v)
		if !getbool("X_BOOL", false) {
			t.Fatalf("getbool(%q) = false", v)
		}
	}
	for _, v := range []string{"0", "false", "No", "n", "OFF"} {
		t.Setenv("X_BOOL", v)
		if getbool("X_BOOL", true) {
			t.Fatalf("getbool(%q) = true", v)
		}
	}
	t.Setenv("X_BOOL", "maybe")
	if !getbool("X_BOOL", true) {
		t.Fatalf("unparseable should fall back to default")
	}
}

func TestGetdurAndGetfloatFallbacks(t *testing.T) {
	t.Setenv("X_DUR", "nope")
	if d := getdur("X_DUR", time.Second); d != time.Second {
		t.Fatalf("getdur fallback = %v", d)
	}
	t.Setenv("X_FLOAT", "abc")
	if f := getfloat("X_FLOAT", 0.5); f != 0.5 {
		t.Fatalf("getfloat fallback = %v", f)
	}
}

func TestSplitCSV(t *testing.T) {
	if got := splitCSV(""); got != nil {
		t.Fatalf("splitCSV(\"\") = %#v; want nil", got)
	}
	if got := splitCSV(" a, ,b "); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("splitCSV = %#v", got)
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":         "/",
		"  ":       "/",
		"api":      "/api",
		"/api/":    "/api",
		"/api/v1/": "/api/v1",
		"/":        "/",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	validEnv(t)
	t.Setenv("PORT", " ")
	t.Setenv("SESSION_BUFFER", "0")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "2")

	_, err := Load()
	if err == nil {
		t.Fatalf("expected error")
	}
	for _, want := range []string{"PORT", "SESSION_BUFFER", "OTEL_TRACES_SAMPLER_ARG"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %q", err, want)
		}
	}
}
