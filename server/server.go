package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"

	"shield/shield-pool/logging"
	merkletree "shield/shield-pool/merkle-tree"
	"shield/shield-pool/pool"
)

type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func malformedBodyError(err error) *Error {
	return &Error{StatusCode: http.StatusBadRequest, Code: "malformed_body", Message: err.Error()}
}

func unexpectedError(err error) *Error {
	return &Error{StatusCode: http.StatusInternalServerError, Code: "unexpected_error", Message: err.Error()}
}

// protocolError maps a ledger rejection onto a stable wire code.
func protocolError(err error) *Error {
	code := ""
	switch {
	case errors.Is(err, pool.ErrDuplicateCommitment):
		code = "duplicate_commitment"
	case errors.Is(err, pool.ErrFeeExceedsDenomination):
		code = "fee_exceeds_denomination"
	case errors.Is(err, pool.ErrAlreadySpent):
		code = "already_spent"
	case errors.Is(err, pool.ErrUnknownRoot):
		code = "unknown_root"
	case errors.Is(err, pool.ErrInvalidProof):
		code = "invalid_proof"
	case errors.Is(err, pool.ErrValueMismatch):
		code = "value_mismatch"
	case errors.Is(err, pool.ErrTransferFailure):
		code = "transfer_failure"
	case errors.Is(err, pool.ErrReentrantCall):
		code = "reentrant_call"
	case errors.Is(err, merkletree.ErrTreeFull):
		code = "tree_full"
	case errors.Is(err, merkletree.ErrOutOfField):
		code = "out_of_field"
	case errors.Is(err, merkletree.ErrIndexOutOfBounds):
		code = "index_out_of_bounds"
	default:
		return unexpectedError(err)
	}
	return &Error{StatusCode: http.StatusBadRequest, Code: code, Message: err.Error()}
}

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{
		"code":    e.Code,
		"message": e.Message,
	})
}

func (e *Error) send(w http.ResponseWriter) {
	w.WriteHeader(e.StatusCode)
	jsonBytes, err := e.MarshalJSON()
	if err != nil {
		jsonBytes = []byte(`{"code": "unexpected_error", "message": "failed to marshal error"}`)
	}
	length, err := w.Write(jsonBytes)
	if err != nil || length != len(jsonBytes) {
		logging.Logger().Error().Err(err).Msg("error writing response")
	}
}

type Config struct {
	PoolAddress    string
	MetricsAddress string
}

// Run starts the pool API and the metrics endpoint. The ledger expects a
// serialized execution model, so every handler funnels through one mutex.
func Run(config *Config, ledger *pool.Ledger) RunningJob {
	metrics := NewMetrics()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler())
	metricsServer := &http.Server{Addr: config.MetricsAddress, Handler: metricsMux}
	metricsJob := spawnServerJob(metricsServer, "metrics server")
	logging.Logger().Info().Str("addr", config.MetricsAddress).Msg("metrics server started")

	poolServer := &http.Server{Addr: config.PoolAddress, Handler: Handler(ledger, metrics)}
	poolJob := spawnServerJob(poolServer, "pool server")
	logging.Logger().Info().Str("addr", config.PoolAddress).Msg("pool server started")

	return CombineJobs(metricsJob, poolJob)
}

// Handler builds the pool API routes. Exposed separately from Run so tests
// can drive the API through httptest without binding sockets.
func Handler(ledger *pool.Ledger, metrics *Metrics) http.Handler {
	state := &poolState{ledger: ledger, metrics: metrics}

	mux := http.NewServeMux()
	mux.Handle("/deposit", depositHandler{state})
	mux.Handle("/withdraw", withdrawHandler{state})
	mux.Handle("/root", rootHandler{state})
	mux.Handle("/spent", spentHandler{state})
	mux.Handle("/spent-batch", spentBatchHandler{state})
	mux.Handle("/zeros", zeroHashHandler{state})
	mux.Handle("/health", healthHandler{})

	corsHandler := handlers.CORS(
		handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"}),
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
	)
	return corsHandler(withRequestID(mux))
}

// poolState serializes access to the ledger across handler goroutines.
type poolState struct {
	mu      sync.Mutex
	ledger  *pool.Ledger
	metrics *Metrics
}

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-Id", id)
		logging.Logger().Debug().
			Str("requestId", id).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request received")
		next.ServeHTTP(w, r)
	})
}

type healthHandler struct{}

func (healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, payload interface{}) {
	responseBytes, err := json.Marshal(payload)
	if err != nil {
		unexpectedError(err).send(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(responseBytes); err != nil {
		logging.Logger().Error().Err(err).Msg("error writing response")
	}
}
