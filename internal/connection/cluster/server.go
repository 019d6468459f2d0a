package cluster

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/google/uuid"

	"github.com/icon-project/xcall-core/internal/logging"
)

// submitRequest is the wire shape a relayer process posts to the ingest
// endpoint: base64 payload plus one base64 signature per validator that
// co-signed it.
type submitRequest struct {
	SrcNetwork string   `json:"src_network"`
	ConnSn     string   `json:"conn_sn"`
	Payload    string   `json:"payload"`
	Signatures []string `json:"signatures"`
}

type submitResponse struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error,omitempty"`
}

// Server exposes Connection.Submit over HTTP for a relayer process to
// post signed batches to. Each request is tagged with a fresh UUID for
// cross-process correlation in logs, following the request-scoped
// identifiers marmos91-dittofs uses (see DESIGN.md).
type Server struct {
	conn   *Connection
	logger *slog.Logger
}

func NewServer(conn *Connection, logger *slog.Logger) *Server {
	if logger == nil {
		logger = logging.New("info")
	}
	return &Server{conn: conn, logger: logger}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/submit", s.handleSubmit)
	return mux
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()
	logger := s.logger.With("request_id", reqID)

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("malformed submit request", "error", err)
		writeJSON(w, http.StatusBadRequest, submitResponse{RequestID: reqID, Error: "malformed request body"})
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, submitResponse{RequestID: reqID, Error: "payload is not valid base64"})
		return
	}
	sigs := make([][]byte, 0, len(req.Signatures))
	for _, encoded := range req.Signatures {
		sig, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, submitResponse{RequestID: reqID, Error: "signature is not valid base64"})
			return
		}
		sigs = append(sigs, sig)
	}
	connSn, ok := new(big.Int).SetString(req.ConnSn, 10)
	if !ok {
		writeJSON(w, http.StatusBadRequest, submitResponse{RequestID: reqID, Error: "conn_sn is not a valid integer"})
		return
	}

	if err := s.conn.Submit(r.Context(), req.SrcNetwork, connSn, payload, sigs); err != nil {
		logger.Info("submit rejected", "error", err, "src_network", req.SrcNetwork, "conn_sn", req.ConnSn)
		writeJSON(w, http.StatusUnprocessableEntity, submitResponse{RequestID: reqID, Error: err.Error()})
		return
	}

	logger.Info("submit accepted", "src_network", req.SrcNetwork, "conn_sn", req.ConnSn)
	writeJSON(w, http.StatusOK, submitResponse{RequestID: reqID})
}

func writeJSON(w http.ResponseWriter, status int, body submitResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
