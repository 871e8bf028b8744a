package apiserver

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/shellforge/execd/internal/chain"
	"github.com/shellforge/execd/internal/dispatch"
	"github.com/shellforge/execd/internal/request"
)

// ExecuteHandler serves POST /v1/execute.
type ExecuteHandler struct {
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger
}

// NewExecuteHandler builds an ExecuteHandler.
func NewExecuteHandler(dispatcher *dispatch.Dispatcher, logger *zap.Logger) *ExecuteHandler {
	return &ExecuteHandler{dispatcher: dispatcher, logger: logger.Named("execute_handler")}
}

// stepResponse is one entry of a chain response's "commands" array.
type stepResponse struct {
	Cmd          string  `json:"cmd"`
	Stdout       string  `json:"stdout"`
	Stderr       string  `json:"stderr"`
	ExitCode     int     `json:"exit_code"`
	DurationSecs float64 `json:"duration"`
	TimedOut     bool    `json:"timed_out"`
	Required     bool    `json:"required"`
}

// environmentResponse reports which named environment a request ran
// against and whether the run's writes landed on that environment's shared
// base rather than a discarded throwaway copy.
type environmentResponse struct {
	Name      string `json:"name"`
	Committed bool   `json:"committed"`
}

// executeResponse is the wire shape of one execution's result. Commands is
// a pointer so an explicit chain's empty slice ([]stepResponse{}, for an
// empty command array) still serializes as "[]" rather than being dropped
// by omitempty, while the single-command shortcut's nil pointer omits the
// field entirely.
type executeResponse struct {
	ID           string               `json:"id"`
	Stdout       string               `json:"stdout,omitempty"`
	Stderr       string               `json:"stderr,omitempty"`
	ExitCode     int                  `json:"exit_code"`
	DurationSecs float64              `json:"duration"`
	TimedOut     bool                 `json:"timed_out"`
	Cached       bool                 `json:"cached"`
	Files        map[string]string    `json:"files,omitempty"`
	Commands     *[]stepResponse      `json:"commands,omitempty"`
	Environment  *environmentResponse `json:"environment,omitempty"`
}

// Execute handles POST /v1/execute.
func (h *ExecuteHandler) Execute(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, request.NewError(request.CodeInvalidType, "could not read request body: %v", err))
		return
	}

	req, err := request.Parse(body)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := h.dispatcher.Execute(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	JSON(w, http.StatusCreated, toExecuteResponse(result))
}

func toExecuteResponse(result *dispatch.Result) executeResponse {
	resp := executeResponse{
		ID:           result.ID,
		ExitCode:     result.ExitCode,
		DurationSecs: result.Duration.Seconds(),
		TimedOut:     result.TimedOut,
		Cached:       result.Cached,
		Files:        result.Files,
	}
	if result.Environment != nil {
		resp.Environment = &environmentResponse{
			Name:      result.Environment.Name,
			Committed: result.Environment.Committed,
		}
	}
	if result.IsChain {
		steps := make([]stepResponse, 0, len(result.Commands))
		for _, step := range result.Commands {
			steps = append(steps, toStepResponse(step))
		}
		resp.Commands = &steps
		return resp
	}
	resp.Stdout = result.Stdout
	resp.Stderr = result.Stderr
	return resp
}

func toStepResponse(step chain.StepTranscript) stepResponse {
	return stepResponse{
		Cmd:          step.Cmd,
		Stdout:       step.Stdout,
		Stderr:       step.Stderr,
		ExitCode:     step.ExitCode,
		DurationSecs: step.Duration.Seconds(),
		TimedOut:     step.TimedOut,
		Required:     step.Required,
	}
}
