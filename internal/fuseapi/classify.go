package fuseapi

import (
	"net/http"

	"github.com/linnemanlabs/ransomfuse/internal/sector"
)

type classifyResponse struct {
	Sector sector.Sector `json:"sector"`
	Stage  sector.Stage  `json:"stage"`
	Match  string        `json:"match,omitempty"`
}

func (a *API) handleClassify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := sector.Input{
		VictimName:  q.Get("name"),
		Website:     q.Get("website"),
		Description: q.Get("description"),
		APISector:   q.Get("sector"),
		Activity:    q.Get("activity"),
	}
	if in == (sector.Input{}) {
		writeError(w, http.StatusBadRequest, "at least one of name, website, description, sector, activity is required")
		return
	}

	res := sector.Explain(in)
	writeJSON(w, http.StatusOK, classifyResponse{Sector: res.Sector, Stage: res.Stage, Match: res.Match})
}
