package apiserver

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/shellforge/execd/internal/environment"
	"github.com/shellforge/execd/internal/request"
)

// EnvironmentHandler serves POST /v1/environment.
type EnvironmentHandler struct {
	manager *environment.Manager
	logger  *zap.Logger
}

// NewEnvironmentHandler builds an EnvironmentHandler.
func NewEnvironmentHandler(manager *environment.Manager, logger *zap.Logger) *EnvironmentHandler {
	return &EnvironmentHandler{manager: manager, logger: logger.Named("environment_handler")}
}

type writtenFileResponse struct {
	WrittenBytes int `json:"written_bytes"`
}

type createEnvironmentResponse struct {
	Name            string                         `json:"name"`
	ConcurrencyMode string                         `json:"concurrency_mode"`
	Files           map[string]writtenFileResponse `json:"files"`
}

// Create handles POST /v1/environment.
func (h *EnvironmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, request.NewError(request.CodeInvalidType, "could not read request body: %v", err))
		return
	}

	create, err := request.ParseEnvironmentCreate(body)
	if err != nil {
		writeError(w, err)
		return
	}

	written, err := h.manager.Create(create.Name, create.ConcurrencyMode, create.Files)
	if err != nil {
		writeError(w, err)
		return
	}

	files := make(map[string]writtenFileResponse, len(written))
	for _, f := range written {
		files[f.Path] = writtenFileResponse{WrittenBytes: f.Bytes}
	}

	JSON(w, http.StatusCreated, createEnvironmentResponse{
		Name:            create.Name,
		ConcurrencyMode: create.ConcurrencyMode,
		Files:           files,
	})
}
