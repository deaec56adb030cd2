package domref

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/domref/axtree"
	"github.com/hazyhaar/domref/internal/connectivity"
	"github.com/hazyhaar/domref/internal/kit"
)

const maxRequestBody = 1 << 20

// Handler serves the command surface over HTTP. Commands are dispatched
// through router; operations it does not serve yet are registered first:
//
//	GET  /healthz               liveness
//	GET  /v1/ops                operation names
//	POST /v1/{op}               run op with the JSON body as params
//	GET  /v1/journal/recent     newest journal events (?limit=, ?session=)
//	GET  /v1/journal/stats      per-op call and error counts
//
// The journal routes exist only when the session's recorder can be read.
func (s *Session) Handler(router *connectivity.Router) http.Handler {
	s.attach(router)
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "session_id": s.id})
	})
	r.Get("/v1/ops", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, Ops())
	})
	r.Post("/v1/{op}", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
		if err != nil {
			resp := respond(nil, axtree.Errorf(axtree.CodeInvalidArgument, "read body: %v", err))
			writeJSON(w, http.StatusBadRequest, resp)
			return
		}

		ctx := kit.WithTransport(r.Context(), "http")
		ctx = kit.WithRequestID(ctx, middleware.GetReqID(r.Context()))
		ctx = kit.WithRemoteAddr(ctx, r.RemoteAddr)

		op := chi.URLParam(r, "op")
		resp := dispatch(ctx, router, op, body)
		code := http.StatusOK
		if resp.err != nil {
			code = httpStatus(resp.err.Code)
			if !router.Has(op) {
				code = http.StatusNotFound
			}
		}
		writeJSON(w, code, resp)
	})

	if jr, ok := s.journal.(JournalReader); ok {
		r.Get("/v1/journal/recent", func(w http.ResponseWriter, r *http.Request) {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			session := r.URL.Query().Get("session")
			if session == "" {
				session = s.id
			} else if session == "all" {
				session = ""
			}
			events, err := jr.Recent(r.Context(), session, limit)
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, respond(nil, err))
				return
			}
			writeJSON(w, http.StatusOK, events)
		})
		r.Get("/v1/journal/stats", func(w http.ResponseWriter, r *http.Request) {
			stats, err := jr.Stats(r.Context())
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, respond(nil, err))
				return
			}
			writeJSON(w, http.StatusOK, stats)
		})
	}
	return r
}

func httpStatus(c axtree.Code) int {
	switch c {
	case axtree.CodeNotFound, axtree.CodeIndexOutOfRange:
		return http.StatusNotFound
	case axtree.CodeInvalidElement:
		return http.StatusUnprocessableEntity
	case axtree.CodeInvalidArgument:
		return http.StatusBadRequest
	case axtree.CodeTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
