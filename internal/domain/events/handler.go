package events

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pettrace/internal/domain/reports"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, reportsSvc *reports.Service, d reports.Display) {
	r.Route("/reports/{reportID}/events", func(er chi.Router) {
		er.Get("/", listReportEventsHandler(svc, reportsSvc, d))
	})

	r.Get("/events", listEventsHandler(svc, d))
}

// eventResponse representa una entrada del log de eventos del registro.
type eventResponse struct {
	ID                  string            `json:"id"`
	ReportID            uint64            `json:"report_id"`
	Type                reports.EventType `json:"type"`
	Actor               string            `json:"actor"`
	NativeAmount        string            `json:"native_amount"`
	TokenAmount         string            `json:"token_amount"`
	NativeAmountDisplay string            `json:"native_amount_display"`
	TokenAmountDisplay  string            `json:"token_amount_display"`
	OccurredAt          time.Time         `json:"occurred_at"`
	RecordedAt          time.Time         `json:"recorded_at"`
}

// listReportEventsHandler godoc
// @Summary Listar eventos de un aviso
// @Description Log append-only de transiciones de un aviso, en orden cronológico. Permite filtrar por tipos y rango de fechas. No requiere autenticación.
// @Tags events
// @Produce json
// @Param reportID path int true "ID del aviso"
// @Param limit query int false "Máximo de eventos a devolver (1-200). Por defecto 50"
// @Param types query string false "Tipos separados por coma (pet_posted,found_claimed,owner_confirmed,bounty_claimed,report_cancelled)"
// @Param from query string false "Desde (RFC3339)"
// @Param to query string false "Hasta (RFC3339)"
// @Success 200 {array} eventResponse
// @Failure 400 {string} string "filtro inválido"
// @Failure 404 {string} string "report not found"
// @Router /reports/{reportID}/events [get]
func listReportEventsHandler(svc *Service, reportsSvc *reports.Service, d reports.Display) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseUint(strings.TrimSpace(chi.URLParam(r, "reportID")), 10, 64)
		if err != nil {
			http.Error(w, "report id must be a non-negative integer", http.StatusBadRequest)
			return
		}

		if _, err := reportsSvc.GetPetDetails(r.Context(), id); err != nil {
			if errors.Is(err, reports.ErrNotFound) {
				http.Error(w, "report not found", http.StatusNotFound)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		filter, err := parseListFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		items, err := svc.ListByReport(r.Context(), id, filter)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toEventResponses(items, d))
	}
}

// listEventsHandler godoc
// @Summary Listar eventos del registro
// @Description Log global de eventos, para indexadores externos que prefieren consultar en vez de suscribirse.
// @Tags events
// @Produce json
// @Param limit query int false "Máximo de eventos a devolver (1-200). Por defecto 50"
// @Param types query string false "Tipos separados por coma"
// @Param from query string false "Desde (RFC3339)"
// @Param to query string false "Hasta (RFC3339)"
// @Success 200 {array} eventResponse
// @Failure 400 {string} string "filtro inválido"
// @Router /events [get]
func listEventsHandler(svc *Service, d reports.Display) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := parseListFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		items, err := svc.List(r.Context(), filter)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, toEventResponses(items, d))
	}
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	limit := DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= MaxLimit {
			limit = n
		}
	}

	filter := ListFilter{Limit: limit}

	// types=pet_posted,bounty_claimed
	types, ok := ParseTypes(r.URL.Query().Get("types"))
	if !ok {
		return ListFilter{}, errors.New("unknown event type")
	}
	filter.Types = types

	// from/to RFC3339
	if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return ListFilter{}, errors.New("from must be RFC3339")
		}
		filter.From = &t
	}
	if v := strings.TrimSpace(r.URL.Query().Get("to")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return ListFilter{}, errors.New("to must be RFC3339")
		}
		filter.To = &t
	}

	return filter, nil
}

func toEventResponses(items []RegistryEvent, d reports.Display) []eventResponse {
	out := make([]eventResponse, 0, len(items))
	for _, e := range items {
		out = append(out, toEventResponse(e, d))
	}
	return out
}

func toEventResponse(e RegistryEvent, d reports.Display) eventResponse {
	return eventResponse{
		ID:                  e.ID,
		ReportID:            e.ReportID,
		Type:                e.Type,
		Actor:               e.Actor.Hex(),
		NativeAmount:        amount(e.NativeAmount),
		TokenAmount:         amount(e.TokenAmount),
		NativeAmountDisplay: d.Native.Format(e.NativeAmount),
		TokenAmountDisplay:  d.Token.Format(e.TokenAmount),
		OccurredAt:          e.OccurredAt,
		RecordedAt:          e.RecordedAt,
	}
}

func amount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// writeJSON está duplicado en cada módulo para no acoplar handlers.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
