package server

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"shield/shield-pool/logging"
	"shield/shield-pool/pool"
)

type depositRequest struct {
	Commitment string `json:"commitment"`
	From       string `json:"from"`
	Value      string `json:"value"`
}

type depositResponse struct {
	LeafIndex uint32 `json:"leafIndex"`
	Root      string `json:"root"`
}

type withdrawRequest struct {
	Proof         string `json:"proof"`
	Root          string `json:"root"`
	NullifierHash string `json:"nullifierHash"`
	Recipient     string `json:"recipient"`
	Relayer       string `json:"relayer"`
	Fee           string `json:"fee"`
	Refund        string `json:"refund"`
	Caller        string `json:"caller"`
	Value         string `json:"value"`
}

type withdrawResponse struct {
	Root string `json:"root"`
}

type rootResponse struct {
	Root      string `json:"root"`
	LeafCount uint32 `json:"leafCount"`
}

type spentResponse struct {
	Spent bool `json:"spent"`
}

type spentBatchRequest struct {
	NullifierHashes []string `json:"nullifierHashes"`
}

type spentBatchResponse struct {
	Spent []bool `json:"spent"`
}

type zeroHashResponse struct {
	Level    uint32 `json:"level"`
	ZeroHash string `json:"zeroHash"`
}

type depositHandler struct {
	state *poolState
}

func (h depositHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req depositRequest
	if apiError := readBody(r, &req); apiError != nil {
		apiError.send(w)
		return
	}
	commitment, err := parseFieldElement(req.Commitment)
	if err != nil {
		malformedBodyError(err).send(w)
		return
	}
	from, err := pool.HexToAddress(req.From)
	if err != nil {
		malformedBodyError(err).send(w)
		return
	}
	value, err := parseAmount(req.Value)
	if err != nil {
		malformedBodyError(err).send(w)
		return
	}

	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	index, err := h.state.ledger.Deposit(r.Context(), commitment, from, value)
	if err != nil {
		apiError := protocolError(err)
		h.state.metrics.rejectionsTotal.WithLabelValues("deposit", apiError.Code).Inc()
		logging.Logger().Info().Err(err).Msg("deposit rejected")
		apiError.send(w)
		return
	}
	h.state.metrics.depositsTotal.Inc()
	writeJSON(w, depositResponse{LeafIndex: index, Root: encodeField(h.state.ledger.LastRoot())})
}

type withdrawHandler struct {
	state *poolState
}

func (h withdrawHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req withdrawRequest
	if apiError := readBody(r, &req); apiError != nil {
		apiError.send(w)
		return
	}
	parsed, err := parseWithdrawRequest(req)
	if err != nil {
		malformedBodyError(err).send(w)
		return
	}

	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	if err := h.state.ledger.Withdraw(r.Context(), parsed); err != nil {
		apiError := protocolError(err)
		h.state.metrics.rejectionsTotal.WithLabelValues("withdraw", apiError.Code).Inc()
		logging.Logger().Info().Err(err).Msg("withdrawal rejected")
		apiError.send(w)
		return
	}
	h.state.metrics.withdrawalsTotal.Inc()
	writeJSON(w, withdrawResponse{Root: encodeField(h.state.ledger.LastRoot())})
}

func parseWithdrawRequest(req withdrawRequest) (pool.WithdrawRequest, error) {
	var out pool.WithdrawRequest
	proof, err := hex.DecodeString(strings.TrimPrefix(req.Proof, "0x"))
	if err != nil {
		return out, fmt.Errorf("invalid proof encoding: %w", err)
	}
	root, err := parseFieldElement(req.Root)
	if err != nil {
		return out, err
	}
	nullifierHash, err := parseFieldElement(req.NullifierHash)
	if err != nil {
		return out, err
	}
	recipient, err := pool.HexToAddress(req.Recipient)
	if err != nil {
		return out, err
	}
	relayer, err := pool.HexToAddress(req.Relayer)
	if err != nil {
		return out, err
	}
	caller, err := pool.HexToAddress(req.Caller)
	if err != nil {
		return out, err
	}
	fee, err := parseAmount(req.Fee)
	if err != nil {
		return out, err
	}
	refund, err := parseAmount(req.Refund)
	if err != nil {
		return out, err
	}
	value, err := parseAmount(req.Value)
	if err != nil {
		return out, err
	}
	return pool.WithdrawRequest{
		Proof:         proof,
		Root:          root,
		NullifierHash: nullifierHash,
		Recipient:     recipient,
		Relayer:       relayer,
		Fee:           fee,
		Refund:        refund,
		Caller:        caller,
		Value:         value,
	}, nil
}

type rootHandler struct {
	state *poolState
}

func (h rootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	writeJSON(w, rootResponse{
		Root:      encodeField(h.state.ledger.LastRoot()),
		LeafCount: h.state.ledger.LeafCount(),
	})
}

type spentHandler struct {
	state *poolState
}

func (h spentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	nullifierHash, err := parseFieldElement(r.URL.Query().Get("nullifier"))
	if err != nil {
		malformedBodyError(err).send(w)
		return
	}
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	writeJSON(w, spentResponse{Spent: h.state.ledger.IsSpent(nullifierHash)})
}

type spentBatchHandler struct {
	state *poolState
}

func (h spentBatchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req spentBatchRequest
	if apiError := readBody(r, &req); apiError != nil {
		apiError.send(w)
		return
	}
	nullifierHashes := make([]*big.Int, len(req.NullifierHashes))
	for i, s := range req.NullifierHashes {
		n, err := parseFieldElement(s)
		if err != nil {
			malformedBodyError(err).send(w)
			return
		}
		nullifierHashes[i] = n
	}
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	writeJSON(w, spentBatchResponse{Spent: h.state.ledger.IsSpentArray(nullifierHashes)})
}

type zeroHashHandler struct {
	state *poolState
}

func (h zeroHashHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	levelParam := r.URL.Query().Get("level")
	parsed, err := strconv.ParseUint(levelParam, 10, 32)
	if err != nil {
		malformedBodyError(fmt.Errorf("invalid level %q: %w", levelParam, err)).send(w)
		return
	}
	level := uint32(parsed)
	h.state.mu.Lock()
	defer h.state.mu.Unlock()
	zero, err := h.state.ledger.ZeroHash(level)
	if err != nil {
		protocolError(err).send(w)
		return
	}
	writeJSON(w, zeroHashResponse{Level: level, ZeroHash: encodeField(zero)})
}

func readBody(r *http.Request, into interface{}) *Error {
	buf, err := io.ReadAll(r.Body)
	if err != nil {
		return malformedBodyError(err)
	}
	if err := json.Unmarshal(buf, into); err != nil {
		return malformedBodyError(err)
	}
	return nil
}

// parseFieldElement accepts 0x-prefixed hex or plain decimal scalars.
func parseFieldElement(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("missing field element")
	}
	v, ok := new(big.Int).SetString(s, 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid field element %q", s)
	}
	return v, nil
}

func parseAmount(s string) (*uint256.Int, error) {
	if s == "" {
		return new(uint256.Int), nil
	}
	amount, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return amount, nil
}

func encodeField(v *big.Int) string {
	return fmt.Sprintf("%#066x", v)
}
