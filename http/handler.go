package http

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-hclog"
)

const (
	// DefaultMaxRequestSize is the default maximum accepted request size.
	DefaultMaxRequestSize = 32 * 1024 * 1024

	// DefaultAPIBase is the prefix routes are mounted under.
	DefaultAPIBase = "/api"
)

// HandlerProperties configures a test handler.
type HandlerProperties struct {
	// APIBase is stripped from request paths before routing. Defaults to
	// DefaultAPIBase; use "/" to route on the full path.
	APIBase string

	// Routes maps a path, relative to APIBase, to its handler. Paths ending
	// in "/" match their subtree, as with http.ServeMux.
	Routes map[string]http.Handler

	// Recorder, when set, records every request before it is routed.
	Recorder *Recorder

	Logger hclog.Logger

	MaxRequestSize        int64
	DisablePrintableCheck bool
}

// Handler returns an http.Handler serving the given routes. Unknown paths
// answer 404 with a {"detail": ...} body.
func Handler(props *HandlerProperties) http.Handler {
	if props == nil {
		props = &HandlerProperties{}
	}
	logger := props.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	mux := http.NewServeMux()
	for path, h := range props.Routes {
		mux.Handle(path, h)
	}
	if _, ok := props.Routes["/"]; !ok {
		mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			RespondError(w, http.StatusNotFound, "Not found.")
		}))
	}

	apiBase := props.APIBase
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}

	var h http.Handler = mux
	h = stripBase(apiBase, h)
	h = wrapMaxRequestSize(props.MaxRequestSize, h)
	if props.Recorder != nil {
		h = props.Recorder.Wrap(h)
	}
	h = wrapLogging(logger, h)

	// Wrap the handler with PrintablePathCheckHandler to check for non-printable
	// characters in the request path.
	if !props.DisablePrintableCheck {
		h = cleanhttp.PrintablePathCheckHandler(h, nil)
	}

	return h
}

func stripBase(base string, h http.Handler) http.Handler {
	base = "/" + strings.Trim(base, "/")
	if base == "/" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, ok := stripPrefix(base, r.URL.Path)
		if !ok {
			RespondError(w, http.StatusNotFound, "Not found.")
			return
		}
		r2 := r.Clone(r.Context())
		r2.URL.Path = path
		h.ServeHTTP(w, r2)
	})
}

func wrapMaxRequestSize(max int64, h http.Handler) http.Handler {
	if max == 0 {
		max = DefaultMaxRequestSize
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if max > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, max)
		}
		h.ServeHTTP(w, r)
	})
}

func wrapLogging(logger hclog.Logger, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Trace("request", "method", r.Method, "path", r.URL.Path, "remote", parseRemoteIPAddress(r))
		h.ServeHTTP(w, r)
	})
}

func stripPrefix(prefix, path string) (string, bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}

	path = path[len(prefix):]
	if path == "" {
		return "/", true
	}
	if !strings.HasPrefix(path, "/") {
		return "", false
	}

	return path, true
}

func parseRemoteIPAddress(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return ""
	}

	return ip
}

// RespondError writes a {"detail": msg} body with the given status.
func RespondError(w http.ResponseWriter, status int, msg string) {
	RespondJSON(w, status, map[string]interface{}{"detail": msg})
}

// RespondFieldErrors writes a 400 with one list of messages per field.
func RespondFieldErrors(w http.ResponseWriter, fieldErrors map[string][]string) {
	RespondJSON(w, http.StatusBadRequest, fieldErrors)
}

// RespondJSON writes body as JSON with the given status.
func RespondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.Encode(body)
}

// RespondOk writes body with a 200, or an empty 204 when body is nil.
func RespondOk(w http.ResponseWriter, body interface{}) {
	if body == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	RespondJSON(w, http.StatusOK, body)
}

// JSONHandler always answers with the given status and body.
func JSONHandler(status int, body interface{}) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if body == nil {
			w.WriteHeader(status)
			return
		}
		RespondJSON(w, status, body)
	})
}

// TextHandler always answers with the given status and a text/plain body.
func TextHandler(status int, text string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		w.Write([]byte(text))
	})
}

// EchoHandler answers 200 with the method, path, query and decoded JSON body
// of the request.
func EchoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		out := map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"query":  r.URL.Query(),
		}
		if r.Body != nil && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
			var body interface{}
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				out["body"] = body
			}
		}
		RespondOk(w, out)
	})
}
