package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/shuttleboard/shuttleboard/internal/model"
	"github.com/shuttleboard/shuttleboard/internal/store"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type courtResponse struct {
	CourtID   int64  `json:"courtId"`
	TeamID    int64  `json:"teamId"`
	Name      string `json:"name"`
	State     string `json:"state"`
	StartedAt string `json:"startedAt,omitempty"`
}

func toCourtResponse(c *model.Court) courtResponse {
	resp := courtResponse{
		CourtID: int64(c.ID),
		TeamID:  int64(c.TeamID),
		Name:    c.Name,
		State:   string(c.State()),
	}
	if c.StartedAt != nil {
		resp.StartedAt = c.StartedAt.Format(time.RFC3339)
	}
	return resp
}

func parseTeamID(r *http.Request) (model.TeamID, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "teamID"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return model.TeamID(id), true
}

// CreateCourt bootstraps a physical court for a team. Courts are created over
// HTTP once per venue setup; everything afterwards happens over the socket.
func CreateCourt(st store.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID, ok := parseTeamID(r)
		if !ok {
			http.Error(w, "invalid teamID", http.StatusBadRequest)
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		court := &model.Court{TeamID: teamID, Name: body.Name}
		if err := st.CreateCourt(r.Context(), court); err != nil {
			log.Error("create court", zap.Error(err))
			http.Error(w, "failed to create court", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(toCourtResponse(court))
	}
}

func ListCourts(st store.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		teamID, ok := parseTeamID(r)
		if !ok {
			http.Error(w, "invalid teamID", http.StatusBadRequest)
			return
		}
		courts, err := st.GetCourtsByTeam(r.Context(), teamID)
		if err != nil {
			log.Error("list courts", zap.Error(err))
			http.Error(w, "failed to list courts", http.StatusInternalServerError)
			return
		}
		out := make([]courtResponse, 0, len(courts))
		for i := range courts {
			out = append(out, toCourtResponse(&courts[i]))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}
