package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/group-availability/internal/application"
	"github.com/example/group-availability/internal/export"
	"github.com/example/group-availability/internal/slotgrid"
)

type availabilityService interface {
	SubmitAvailability(ctx context.Context, params application.SubmitAvailabilityParams) (application.Participant, error)
	GetParticipant(ctx context.Context, roomID, name string) (application.Participant, error)
	ListParticipants(ctx context.Context, roomID string) ([]application.Participant, error)
	Heatmap(ctx context.Context, roomID string) (application.Heatmap, error)
}

// AvailabilityHandler serves participant grids and the room heat-map.
type AvailabilityHandler struct {
	service   availabilityService
	rooms     roomService
	responder responder
	logger    *slog.Logger
}

// NewAvailabilityHandler builds the handler. rooms is only used to title the
// spreadsheet export and may be nil.
func NewAvailabilityHandler(service availabilityService, rooms roomService, logger *slog.Logger) *AvailabilityHandler {
	base := defaultLogger(logger)
	return &AvailabilityHandler{service: service, rooms: rooms, responder: newResponder(base), logger: base}
}

func (h *AvailabilityHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AvailabilityHandler", operation, attrs...)
}

func (h *AvailabilityHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

func (h *AvailabilityHandler) roomID(w http.ResponseWriter, r *http.Request, operation string) (string, bool) {
	roomID, ok := RoomIDFromContext(r.Context())
	if !ok || strings.TrimSpace(roomID) == "" {
		h.log(r.Context(), operation, "error_kind", "bad_request").ErrorContext(r.Context(), "missing room id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return "", false
	}
	return roomID, true
}

func (h *AvailabilityHandler) participantName(w http.ResponseWriter, r *http.Request, operation string) (string, bool) {
	name, ok := ParticipantNameFromContext(r.Context())
	if !ok || strings.TrimSpace(name) == "" {
		h.log(r.Context(), operation, "error_kind", "bad_request").ErrorContext(r.Context(), "missing participant name")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidParticipant)
		return "", false
	}
	return name, true
}

func (h *AvailabilityHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	roomID, ok := h.roomID(w, r, "ListParticipants")
	if !ok {
		return
	}

	logger := h.log(r.Context(), "ListParticipants")
	participants, err := h.service.ListParticipants(r.Context(), roomID)
	if err != nil {
		logger.ErrorContext(r.Context(), "participant list failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(participants)).InfoContext(r.Context(), "participants listed")
	dtos := make([]participantDTO, 0, len(participants))
	for _, p := range participants {
		dtos = append(dtos, toParticipantDTO(p))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listParticipantsResponse{Participants: dtos})
}

func (h *AvailabilityHandler) GetParticipant(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	roomID, ok := h.roomID(w, r, "GetParticipant")
	if !ok {
		return
	}
	name, ok := h.participantName(w, r, "GetParticipant")
	if !ok {
		return
	}

	logger := h.log(r.Context(), "GetParticipant")
	participant, err := h.service.GetParticipant(r.Context(), roomID, name)
	if err != nil {
		logger.ErrorContext(r.Context(), "participant lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, participantResponse{Participant: toParticipantDTO(participant)})
}

func (h *AvailabilityHandler) PutParticipant(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	roomID, ok := h.roomID(w, r, "PutParticipant")
	if !ok {
		return
	}
	name, ok := h.participantName(w, r, "PutParticipant")
	if !ok {
		return
	}

	var req availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "PutParticipant", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode availability request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "PutParticipant")
	participant, err := h.service.SubmitAvailability(r.Context(), application.SubmitAvailabilityParams{
		RoomID:          roomID,
		ParticipantName: name,
		Encoded:         req.ScheduleEncoding,
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "availability submission failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "availability saved")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, participantResponse{Participant: toParticipantDTO(participant)})
}

func (h *AvailabilityHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	roomID, ok := h.roomID(w, r, "Heatmap")
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Heatmap")
	heatmap, err := h.service.Heatmap(r.Context(), roomID)
	if err != nil {
		logger.ErrorContext(r.Context(), "heatmap failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	etag := fmt.Sprintf("%q", heatmap.Fingerprint)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		logger.DebugContext(r.Context(), "heatmap not modified")
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toHeatmapDTO(heatmap))
}

func (h *AvailabilityHandler) HeatmapWorkbook(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}
	roomID, ok := h.roomID(w, r, "HeatmapWorkbook")
	if !ok {
		return
	}

	logger := h.log(r.Context(), "HeatmapWorkbook")
	heatmap, err := h.service.Heatmap(r.Context(), roomID)
	if err != nil {
		logger.ErrorContext(r.Context(), "heatmap failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	roomName := roomID
	if h.rooms != nil {
		if room, err := h.rooms.GetRoom(r.Context(), roomID); err == nil {
			roomName = room.Name
		}
	}

	data, err := export.HeatmapWorkbook(roomName, heatmap.Result())
	if err != nil {
		logger.ErrorContext(r.Context(), "workbook generation failed", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=heatmap-%s.xlsx", roomID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.ErrorContext(r.Context(), "failed to write workbook", "error", err)
		return
	}
	logger.InfoContext(r.Context(), "workbook exported", "bytes", len(data))
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}

type availabilityRequest struct {
	ScheduleEncoding string `json:"schedule_encoding"`
}

type participantResponse struct {
	Participant participantDTO `json:"participant"`
}

type listParticipantsResponse struct {
	Participants []participantDTO `json:"participants"`
}

type participantDTO struct {
	RoomID           string `json:"room_id"`
	Name             string `json:"name"`
	ScheduleEncoding string `json:"schedule_encoding"`
	Submitted        bool   `json:"submitted"`
	AvailableSlots   int    `json:"available_slots"`
	CreatedAt        string `json:"created_at,omitempty"`
	UpdatedAt        string `json:"updated_at,omitempty"`
}

func toParticipantDTO(p application.Participant) participantDTO {
	return participantDTO{
		RoomID:           p.RoomID,
		Name:             p.Name,
		ScheduleEncoding: p.Encoded,
		Submitted:        p.Submitted,
		AvailableSlots:   p.Grid.Count(),
		CreatedAt:        formatOptionalTime(p.CreatedAt),
		UpdatedAt:        formatOptionalTime(p.UpdatedAt),
	}
}

type heatmapDTO struct {
	RoomID            string                                        `json:"room_id"`
	Respondents       int                                           `json:"respondents"`
	MaxAttendance     int                                           `json:"max_attendance"`
	Attendance        slotgrid.WeekGrid                             `json:"attendance"`
	Attendees         [slotgrid.Days][slotgrid.SlotsPerDay][]string `json:"attendees"`
	EncodedAttendance string                                        `json:"encoded_attendance"`
	Skipped           []string                                      `json:"skipped"`
}

func toHeatmapDTO(h application.Heatmap) heatmapDTO {
	dto := heatmapDTO{
		RoomID:            h.RoomID,
		Respondents:       h.Respondents,
		MaxAttendance:     h.MaxAttendance,
		Attendance:        h.Attendance,
		EncodedAttendance: h.EncodedAttendance(),
		Skipped:           append([]string{}, h.Skipped...),
	}
	for day := range h.Attendees {
		for slot, names := range h.Attendees[day] {
			dto.Attendees[day][slot] = append([]string{}, names...)
		}
	}
	return dto
}

func formatOptionalTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
