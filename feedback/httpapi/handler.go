package httpapi

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"os"
)

// maxBodySize é o padrão de 1MB para o corpo dos requests.
const maxBodySize = 1 << 20

// FeedbackService é o que o handler precisa da camada application.
type FeedbackService interface {
	Submit(ctx context.Context, candidate any) error
	PublicKey(ctx context.Context) (string, error)
}

// NonceFunc gera o token por request que vai no template da página e no CSP.
type NonceFunc func() (string, error)

type Handler struct {
	svc          FeedbackService
	log          *slog.Logger
	maxBodyBytes int64
	indexPath    string
	nonce        NonceFunc
}

type HandlerOption func(*Handler)

func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// WithIndexPage define o template html da página de entrada.
func WithIndexPage(path string) HandlerOption {
	return func(h *Handler) { h.indexPath = path }
}

func WithNonce(fn NonceFunc) HandlerOption {
	return func(h *Handler) { h.nonce = fn }
}

func NewHandler(svc FeedbackService, log *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		svc:          svc,
		log:          log,
		maxBodyBytes: maxBodySize,
		nonce:        randomNonce,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type submitRequest struct {
	EncryptedMessage any `json:"encryptedMessage"`
}

type submitResponse struct {
	Success bool `json:"success"`
}

type publicKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// HandleFeedback recebe {"encryptedMessage": "..."}.
//
// O limite de tamanho é aplicado antes de qualquer parse; o validador só roda
// com o corpo inteiro lido e decodificado.
func (h *Handler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	if r.ContentLength > h.maxBodyBytes {
		// corpo não lido: a conexão não pode ser reaproveitada
		r.Close = true
		writeError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
		return
	}

	err := h.submit(w, r)
	if err != nil {
		status, msg := submitStatus(err)
		if status == http.StatusRequestEntityTooLarge {
			r.Close = true
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, submitResponse{Success: true})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadBody, err)
	}

	var req submitRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&req); err != nil {
		return errBadBody
	}
	if dec.More() {
		return errBadBody
	}

	return h.svc.Submit(r.Context(), req.EncryptedMessage)
}

// HandlePublicKey devolve a chave verbatim em {"publicKey": "..."}.
func (h *Handler) HandlePublicKey(w http.ResponseWriter, r *http.Request) {
	key, err := h.svc.PublicKey(r.Context())
	if err != nil {
		status, msg := publicKeyStatus(err)
		writeError(w, status, msg)
		return
	}
	writeJSON(w, http.StatusOK, publicKeyResponse{PublicKey: key})
}

type indexData struct {
	Nonce string
}

// HandleIndex renderiza a página de entrada com um nonce novo, repetido no
// header Content-Security-Policy. O arquivo é relido a cada request.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if h.indexPath == "" {
		h.NotFound(w, r)
		return
	}

	src, err := os.ReadFile(h.indexPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			h.log.Warn("Index page missing", "path", h.indexPath)
			h.NotFound(w, r)
			return
		}
		h.log.Error("Failed to read index page", "err", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	tmpl, err := template.New("index").Parse(string(src))
	if err != nil {
		h.log.Error("Failed to parse index page", "err", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	nonce, err := h.nonce()
	if err != nil {
		h.log.Error("Failed to generate nonce", "err", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, indexData{Nonce: nonce}); err != nil {
		h.log.Error("Failed to render index page", "err", err)
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", contentSecurityPolicy(nonce))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, msgNotFound)
}

func contentSecurityPolicy(nonce string) string {
	return "default-src 'self'; script-src 'self' 'nonce-" + nonce + "'; " +
		"object-src 'none'; base-uri 'none'; frame-ancestors 'none'"
}

func randomNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
