// README: Incident handlers: report intake, reads, and the review transition.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rakshak/internal/modules/dispatch"
	"rakshak/internal/modules/incident"
	"rakshak/internal/types"
)

type IncidentHandler struct {
	incidents *incident.Service
}

func NewIncidentHandler(svc *incident.Service) *IncidentHandler {
	return &IncidentHandler{incidents: svc}
}

type reportReq struct {
	PhoneNumber string   `json:"phone_number"`
	Description string   `json:"description"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Severity    string   `json:"severity"`
	ImageURLs   []string `json:"image_urls"`
}

func (h *IncidentHandler) Report(c *gin.Context) {
	var req reportReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	in, err := h.incidents.Report(c.Request.Context(), incident.ReportCommand{
		PhoneNumber: req.PhoneNumber,
		Description: req.Description,
		Origin:      types.Point{Lat: req.Lat, Lng: req.Lng},
		Severity:    incident.Severity(req.Severity),
		ImageURLs:   req.ImageURLs,
	})
	if err != nil {
		writeIncidentError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "incident": incidentDTO(in)})
}

func (h *IncidentHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid incident id")
		return
	}
	in, err := h.incidents.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeIncidentError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "incident": incidentDTO(in)})
}

func (h *IncidentHandler) List(c *gin.Context) {
	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", 20)
	ins, err := h.incidents.List(c.Request.Context(), page, pageSize)
	if err != nil {
		writeIncidentError(c, err)
		return
	}
	out := make([]gin.H, 0, len(ins))
	for _, in := range ins {
		out = append(out, incidentDTO(in))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "incidents": out})
}

type updateStatusReq struct {
	Status string `json:"status"`
}

// UpdateStatus is the review transition: 400 on malformed input, 404 when the
// incident is missing, 409 on a replayed or invalid transition, 200 otherwise
// even when downstream dispatch partially failed.
func (h *IncidentHandler) UpdateStatus(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid incident id")
		return
	}
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	newStatus := incident.Status(req.Status)
	if !incident.ValidStatus(newStatus) {
		writeError(c, http.StatusBadRequest, "status must be ACCEPTED or REJECTED")
		return
	}

	res, err := h.incidents.Transition(c.Request.Context(), types.ID(id), newStatus)
	if err != nil {
		writeIncidentError(c, err)
		return
	}

	body := gin.H{
		"success":  true,
		"incident": incidentDTO(res.Incident),
	}
	if res.Dispatch != nil {
		body["nearestServices"] = gin.H{
			"ambulances": candidateDTOs(res.Dispatch.Nearest.Ambulances),
			"hospitals":  candidateDTOs(res.Dispatch.Nearest.Hospitals),
			"police":     candidateDTOs(res.Dispatch.Nearest.Police),
		}
		body["dispatchResults"] = gin.H{
			"ambulance": gin.H{
				"dispatched": res.Dispatch.Results.Ambulance.Dispatched,
				"notified":   res.Dispatch.Results.Ambulance.NotifiedUnitIDs,
				"reason":     res.Dispatch.Results.Ambulance.Reason,
			},
			"hospital": gin.H{
				"notified": res.Dispatch.Results.Hospital.Notified,
				"failures": res.Dispatch.Results.Hospital.Failures,
			},
			"police": gin.H{
				"notified": res.Dispatch.Results.Police.Notified,
				"failures": res.Dispatch.Results.Police.Failures,
			},
		}
	}
	c.JSON(http.StatusOK, body)
}

func incidentDTO(in *incident.Incident) gin.H {
	var reviewedAt *string
	if in.ReviewedAt != nil {
		v := in.ReviewedAt.Format(time.RFC3339)
		reviewedAt = &v
	}
	return gin.H{
		"id":           in.ID,
		"phone_number": in.PhoneNumber,
		"description":  in.Description,
		"lat":          in.Origin.Lat,
		"lng":          in.Origin.Lng,
		"severity":     in.Severity,
		"status":       in.Status,
		"image_urls":   in.ImageURLs,
		"created_at":   in.CreatedAt.Format(time.RFC3339),
		"reviewed_at":  reviewedAt,
	}
}

func candidateDTOs(cs []dispatch.Candidate) []gin.H {
	out := make([]gin.H, 0, len(cs))
	for _, c := range cs {
		out = append(out, gin.H{
			"id":          c.Unit.ID,
			"name":        c.Unit.Name,
			"phone":       c.Unit.Phone,
			"address":     c.Unit.Address,
			"distanceKm":  c.DistanceKm,
			"durationMin": c.EtaMin,
		})
	}
	return out
}

func intQuery(c *gin.Context, key string, def int) int {
	if raw := c.Query(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return def
}
