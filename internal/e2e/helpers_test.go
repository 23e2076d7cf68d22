package e2e

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ctxprobe/internal/ollama"
)

// fakeModel describes how a served model consumes memory in the fake:
// baseBytes resident regardless of context plus perCtxBytes per slot.
type fakeModel struct {
	maxCtx      int
	baseBytes   int64
	perCtxBytes int64
}

// fakeOllama emulates the serving API endpoints the prober talks to. A
// model "fits" when its whole footprint stays within vramBudget; anything
// above the budget spills, which /api/ps reports as size_vram < size.
type fakeOllama struct {
	mu         sync.Mutex
	version    string
	vramBudget int64
	models     map[string]fakeModel

	loaded    string
	loadedCtx int
	chatCalls int
}

func (f *fakeOllama) footprint(name string, ctxSize int) (total, vram int64) {
	m := f.models[name]
	total = m.baseBytes + m.perCtxBytes*int64(ctxSize)
	vram = total
	if vram > f.vramBudget {
		vram = f.vramBudget
	}
	return total, vram
}

func (f *fakeOllama) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]string{"version": f.version})
	})

	mux.HandleFunc("GET /api/tags", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var tags []map[string]string
		for name := range f.models {
			tags = append(tags, map[string]string{"name": name})
		}
		writeJSON(w, map[string]any{"models": tags})
	})

	mux.HandleFunc("POST /api/show", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		m, ok := f.models[req.Model]
		f.mu.Unlock()
		if !ok {
			http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
			return
		}
		writeJSON(w, map[string]any{
			"model_info": map[string]any{"llama.context_length": m.maxCtx},
		})
	})

	mux.HandleFunc("POST /api/chat", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string         `json:"model"`
			Messages []any          `json:"messages"`
			Options  map[string]int `json:"options"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.chatCalls++
		if _, ok := f.models[req.Model]; !ok {
			writeJSON(w, map[string]string{"error": "model not found"})
			return
		}
		f.loaded = req.Model
		f.loadedCtx = req.Options["num_ctx"]
		resp := map[string]any{"done": true, "total_duration": int64(40 * time.Millisecond)}
		if len(req.Messages) > 0 {
			resp["prompt_eval_count"] = 7
			resp["prompt_eval_duration"] = int64(10 * time.Millisecond)
			resp["eval_count"] = 24
			resp["eval_duration"] = int64(30 * time.Millisecond)
		}
		writeJSON(w, resp)
	})

	mux.HandleFunc("GET /api/ps", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var running []map[string]any
		if f.loaded != "" {
			total, vram := f.footprint(f.loaded, f.loadedCtx)
			running = append(running, map[string]any{
				"name":      f.loaded,
				"model":     f.loaded,
				"size":      total,
				"size_vram": vram,
			})
		}
		writeJSON(w, map[string]any{"models": running})
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// startFake runs the fake serving API and returns it with a client wired
// to its URL.
func startFake(t *testing.T, fake *fakeOllama) (*httptest.Server, *ollama.Client) {
	t.Helper()
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)
	client := ollama.New(ollama.Config{
		BaseURL:        srv.URL,
		RequestTimeout: 5 * time.Second,
		InvokeTimeout:  5 * time.Second,
	}, zerolog.Nop())
	return srv, client
}
