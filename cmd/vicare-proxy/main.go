package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/diegoweb100/vicare-client-go/pkg/cache"
	"github.com/diegoweb100/vicare-client-go/pkg/client"
	"github.com/diegoweb100/vicare-client-go/pkg/logging"
	"github.com/diegoweb100/vicare-client-go/pkg/transport"
)

func main() {
	baseURL := getEnv("VICARE_BASE_URL", "https://api.viessmann.com/iot/v1")
	port := getEnv("PORT", "8080")
	userAgent := getEnv("USER_AGENT", "vicare-client-go/0.1.0")
	token := os.Getenv("VICARE_ACCESS_TOKEN")

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
		Pretty: os.Getenv("LOG_PRETTY") == "true",
		Output: os.Stderr,
	})

	var tokens transport.TokenSource
	if token != "" {
		tokens = staticTokenSource(token)
	}

	upstream, err := transport.NewHTTPTransport(transport.Config{
		BaseURL:   baseURL,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		Tokens:    tokens,
	}, logging.NewLogger("transport"))
	if err != nil {
		log.Fatalf("Failed to create transport: %v", err)
	}

	cfg := client.DefaultConfig()
	cfg.Cache.EnableIntelligentPrefetch = true

	vicare, err := client.New(cfg, tokens)
	if err != nil {
		log.Fatalf("Failed to create ViCare client: %v", err)
	}
	defer vicare.Close()

	wirePrefetch(vicare, upstream)

	http.HandleFunc("/health", healthHandler)
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/status", statusHandler(vicare))
	http.HandleFunc("/api/", apiProxyHandler(vicare, upstream))

	addr := ":" + port
	log.Printf("Starting ViCare proxy server on %s (upstream %s)", addr, baseURL)

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "OK")
}

func statusHandler(vicare *client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"cache":      vicare.CacheStats(),
			"rate_limit": vicare.RateLimitStatus(),
		})
	}
}

func apiProxyHandler(vicare *client.Client, upstream *transport.HTTPTransport) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "only GET is proxied", http.StatusMethodNotAllowed)
			return
		}

		// Example: /api/installations -> /installations
		endpoint := strings.TrimPrefix(r.URL.Path, "/api")
		params := r.URL.Query()

		ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
		defer cancel()

		fn := func(ctx context.Context, extra http.Header) (*transport.Response, error) {
			return upstream.Get(ctx, endpoint, params, extra)
		}
		key := &cache.Key{Endpoint: endpoint, Params: params}
		resp, err := vicare.MakeCall(ctx, fn, "proxy "+endpoint, key)
		if err != nil {
			http.Error(w, fmt.Sprintf("upstream request failed: %v", err), http.StatusBadGateway)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Cached {
			w.Header().Set("X-Cache", "HIT")
		}
		w.WriteHeader(resp.Status)
		w.Write(resp.Data)
	}
}

// wirePrefetch lets the advisor warm dependent endpoints through the real
// transport. Patterns still carrying placeholders cannot be resolved here
// and stay intent-only.
func wirePrefetch(vicare *client.Client, upstream *transport.HTTPTransport) {
	vicare.Cache().Advisor().SetFetchFunc(func(pattern string) {
		if strings.Contains(pattern, "{") {
			return
		}
		endpoint := "/" + strings.Trim(pattern, "/")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		vicare.MakeCall(ctx, requestFor(upstream, endpoint), "prefetch "+endpoint, keyFor(endpoint))
	})
}

func keyFor(endpoint string) *cache.Key {
	return &cache.Key{Endpoint: endpoint}
}

func requestFor(upstream *transport.HTTPTransport, endpoint string) client.RequestFunc {
	return func(ctx context.Context, extra http.Header) (*transport.Response, error) {
		return upstream.Get(ctx, endpoint, nil, extra)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// staticTokenSource serves a fixed token from the environment. Refresh is a
// no-op because there is no refresh token in this deployment mode.
type staticTokenSource string

func (s staticTokenSource) AccessToken(ctx context.Context) (string, error) {
	return string(s), nil
}

func (s staticTokenSource) RefreshToken(ctx context.Context) error {
	return fmt.Errorf("static token cannot be refreshed")
}
