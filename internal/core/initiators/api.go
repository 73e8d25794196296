package initiators

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"sort"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	pkgif "github.com/dep2p/go-apmrouter/pkg/interfaces"
	"github.com/dep2p/go-apmrouter/pkg/types"
)

// StatsSource STAT 命令与 API 使用的计数来源
type StatsSource interface {
	Counts() map[string]int64
}

// Deps 内置初始器依赖
type Deps struct {
	// Sink 数据点路由目标，为 nil 时丢弃
	Sink pkgif.MetricSink

	// Catalog 最新值目录（可选）
	Catalog pkgif.MetricCatalog

	// Stats 计数来源（可选）
	Stats StatsSource

	// Metrics Prometheus 暴露 handler（可选）
	Metrics http.Handler
}

// pointsResponse POST /v1/points 响应
type pointsResponse struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// api 内置 HTTP API
type api struct {
	deps       Deps
	maxBody    int64
	maxDecoded int64
}

// newAPI 创建 API 路由
func newAPI(deps Deps, maxBody, maxDecoded int64) http.Handler {
	a := &api{deps: deps, maxBody: maxBody, maxDecoded: maxDecoded}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", a.healthz)
	mux.HandleFunc("GET /v1/stats", a.stats)
	mux.HandleFunc("POST /v1/points", a.points)
	mux.HandleFunc("GET /v1/catalog", a.catalogNames)
	mux.HandleFunc("GET /v1/catalog/{name}", a.catalogLast)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}
	return mux
}

func (a *api) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (a *api) stats(w http.ResponseWriter, _ *http.Request) {
	counts := map[string]int64{}
	if a.deps.Stats != nil {
		counts = a.deps.Stats.Counts()
	}
	writeJSON(w, http.StatusOK, counts)
}

func (a *api) points(w http.ResponseWriter, r *http.Request) {
	body := io.Reader(r.Body)
	if a.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, a.maxBody)
	}

	switch r.Header.Get("Content-Encoding") {
	case "", "identity":
	case "gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		defer zr.Close()
		body = zr
	case "zstd":
		zr, err := zstd.NewReader(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		defer zr.Close()
		body = zr
	default:
		writeError(w, http.StatusUnsupportedMediaType, errors.New("unsupported content encoding"))
		return
	}

	data, err := readBounded(body, a.maxDecoded)
	if err != nil {
		status := http.StatusBadRequest
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) || errors.Is(err, ErrDecodedTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, err)
		return
	}

	var (
		points   []types.MetricPoint
		rejected int
	)
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mt {
	case "", "application/json":
		points, rejected, err = DecodeJSON(data)
	case "application/x-protobuf", "application/protobuf":
		points, rejected, err = DecodeProtobuf(data)
	case "text/plain":
		points, rejected = ParseLines(data)
	default:
		writeError(w, http.StatusUnsupportedMediaType, errors.New("unsupported content type"))
		return
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if len(points) > 0 && a.deps.Sink != nil {
		if err := a.deps.Sink.Route(r.Context(), points); err != nil {
			writeError(w, http.StatusServiceUnavailable, err)
			return
		}
	}
	writeJSON(w, http.StatusAccepted, pointsResponse{Accepted: len(points), Rejected: rejected})
}

func (a *api) catalogNames(w http.ResponseWriter, _ *http.Request) {
	var names []string
	if a.deps.Catalog != nil {
		names = a.deps.Catalog.Names()
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, map[string][]string{"names": names})
}

func (a *api) catalogLast(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if a.deps.Catalog == nil {
		http.NotFound(w, r)
		return
	}
	p, ok := a.deps.Catalog.Last(name)
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("unknown series "+name))
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
