package runtime

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// registerAPI mounts the game control endpoints.
func (r *Runtime) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/games", r.handleGames)
	mux.HandleFunc("POST /v1/rounds", r.handleStartRound)
	mux.HandleFunc("POST /v1/rounds/abandon", r.handleAbandonRound)
	mux.HandleFunc("GET /v1/progress", r.handleProgress)
	mux.HandleFunc("POST /v1/progress/reset", r.handleProgressReset)
}

type gameRequest struct {
	Game string `json:"game"`
}

func (r *Runtime) decodeGame(w http.ResponseWriter, req *http.Request) (string, bool) {
	var body gameRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if strings.TrimSpace(body.Game) == "" {
		writeError(w, http.StatusBadRequest, "game is required")
		return "", false
	}
	return body.Game, true
}

func (r *Runtime) handleGames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"games": r.session.Games()})
}

func (r *Runtime) handleStartRound(w http.ResponseWriter, req *http.Request) {
	game, ok := r.decodeGame(w, req)
	if !ok {
		return
	}
	roundID, err := r.session.StartRound(game)
	if err != nil {
		r.logger.Warn("round start rejected",
			slog.String("game", game), slog.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"round_id": roundID})
}

func (r *Runtime) handleAbandonRound(w http.ResponseWriter, req *http.Request) {
	game, ok := r.decodeGame(w, req)
	if !ok {
		return
	}
	if err := r.session.Abandon(game); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Runtime) handleProgress(w http.ResponseWriter, req *http.Request) {
	game := req.URL.Query().Get("game")
	if game == "" {
		writeError(w, http.StatusBadRequest, "game query parameter is required")
		return
	}
	snap, err := r.session.Snapshot(game)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (r *Runtime) handleProgressReset(w http.ResponseWriter, req *http.Request) {
	game, ok := r.decodeGame(w, req)
	if !ok {
		return
	}
	if err := r.session.ResetProgress(req.Context(), game); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
