// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package escrowhttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/strongroom-foundation/strongroom/lib/escrow"
)

// Server exposes an escrow.Service over HTTP. It is a plain
// http.Handler; lifecycle (listening, TLS, shutdown) belongs to the
// embedding daemon.
//
// The server performs no authentication itself. Access control
// belongs on the wrapped service's Authorizer and on the transport in
// front of this handler — a remote escrow that decrypts for anyone
// who can reach it is a key server, not an escrow.
type Server struct {
	service escrow.Service
	logger  *slog.Logger
	mux     *http.ServeMux
}

// NewServer creates a handler over service. logger may be nil.
func NewServer(service escrow.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	server := &Server{service: service, logger: logger, mux: http.NewServeMux()}
	server.mux.HandleFunc(publicKeyPath, requirePOST(server.handlePublicKey))
	server.mux.HandleFunc(signPath, requirePOST(server.handleSign))
	server.mux.HandleFunc(decryptPath, requirePOST(server.handleDecrypt))
	return server
}

// requirePOST rejects non-POST requests the same way a method-qualified
// mux pattern would: 405 with an Allow header.
func requirePOST(handler http.HandlerFunc) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost {
			writer.Header().Set("Allow", http.MethodPost)
			http.Error(writer, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		handler(writer, request)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	s.mux.ServeHTTP(writer, request)
}

func (s *Server) handlePublicKey(writer http.ResponseWriter, request *http.Request) {
	var body publicKeyRequest
	if !s.decodeRequest(writer, request, &body) {
		return
	}
	publicKey, err := s.service.PublicKey(request.Context(), body.KeychainID, body.KeyType)
	if err != nil {
		s.writeError(writer, "public-key", err)
		return
	}
	s.writeJSON(writer, publicKeyResponse{PublicKey: publicKey})
}

func (s *Server) handleSign(writer http.ResponseWriter, request *http.Request) {
	var body signRequest
	if !s.decodeRequest(writer, request, &body) {
		return
	}
	signature, err := s.service.Sign(request.Context(), body.KeychainID, body.KeyType, body.Algorithm, body.Message)
	if err != nil {
		s.writeError(writer, "sign", err)
		return
	}
	s.writeJSON(writer, signResponse{Signature: signature})
}

func (s *Server) handleDecrypt(writer http.ResponseWriter, request *http.Request) {
	var body decryptRequest
	if !s.decodeRequest(writer, request, &body) {
		return
	}
	plaintext, err := s.service.DecryptWithPrivateKey(request.Context(), body.KeychainID, body.KeyType, body.Algorithm, body.Ciphertext)
	if err != nil {
		s.writeError(writer, "decrypt", err)
		return
	}
	s.writeJSON(writer, decryptResponse{Plaintext: plaintext})
}

func (s *Server) decodeRequest(writer http.ResponseWriter, request *http.Request, target any) bool {
	if err := json.NewDecoder(request.Body).Decode(target); err != nil {
		s.writeJSONStatus(writer, http.StatusBadRequest, errorBody{
			Code:    codeInternal,
			Message: fmt.Sprintf("decoding request: %v", err),
		})
		return false
	}
	return true
}

// writeError maps service failures to status codes and wire error
// codes. Internal detail (keystore paths, stack context) stays out of
// the response body.
func (s *Server) writeError(writer http.ResponseWriter, operation string, err error) {
	body := errorBody{Code: codeInternal, Message: err.Error()}
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, escrow.ErrUnsupportedAlgorithm):
		body.Code = codeUnsupportedAlgorithm
		status = http.StatusBadRequest
	case errors.Is(err, escrow.ErrDecryptionRefused):
		body.Code = codeDecryptionRefused
		status = http.StatusForbidden
	case errors.Is(err, escrow.ErrSignatureRefused):
		body.Code = codeSignatureRefused
		status = http.StatusForbidden
	case errors.Is(err, escrow.ErrMalformedCiphertext):
		body.Code = codeMalformedCiphertext
		status = http.StatusBadRequest
	}

	s.logger.Warn("escrow operation failed",
		"operation", operation,
		"code", body.Code,
		"error", err,
	)
	s.writeJSONStatus(writer, status, body)
}

func (s *Server) writeJSON(writer http.ResponseWriter, body any) {
	s.writeJSONStatus(writer, http.StatusOK, body)
}

func (s *Server) writeJSONStatus(writer http.ResponseWriter, status int, body any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(body); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}
