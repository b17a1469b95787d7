package reports

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pettrace/internal/middleware"
	"pettrace/internal/platform/units"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

// Display define cómo se muestran los montos en las respuestas.
type Display struct {
	Native units.Currency
	Token  units.Currency
}

func DefaultDisplay() Display {
	return Display{
		Native: units.Native("ETH", 18),
		Token:  units.Token("USDC", 6),
	}
}

func RegisterRoutes(r chi.Router, svc *Service, d Display) {
	r.Route("/reports", func(rr chi.Router) {
		rr.Post("/", postLostPetHandler(svc, d))
		rr.Get("/", listReportsHandler(svc, d))
		rr.Get("/{reportID}", getReportHandler(svc, d))

		// Transiciones
		rr.Post("/{reportID}/found", transitionHandler(svc.MarkAsFound, d))
		rr.Post("/{reportID}/confirm", transitionHandler(svc.ConfirmFoundByOwner, d))
		rr.Post("/{reportID}/claim", transitionHandler(svc.ClaimBounty, d))
		rr.Post("/{reportID}/cancel", transitionHandler(svc.CancelReport, d))
	})
}

// postLostPetRequest es el cuerpo para publicar una mascota perdida.
// Montos: `value` / `token_bounty_amount` en unidades base, o `eth_bounty` / `token_bounty` en decimal.
type postLostPetRequest struct {
	Name             string `json:"name"`
	Breed            string `json:"breed"`
	Gender           string `json:"gender"`
	SizeCm           uint64 `json:"size_cm"`
	AgeMonths        uint64 `json:"age_months"`
	DateTimeLost     string `json:"date_time_lost"`
	Description      string `json:"description"`
	ImageURL         string `json:"image_url"`
	LastSeenLocation string `json:"last_seen_location"`

	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`

	Value             string `json:"value"`               // wei
	TokenBountyAmount string `json:"token_bounty_amount"` // unidades base del token
	EthBounty         string `json:"eth_bounty"`          // p.ej. "0.01"
	TokenBounty       string `json:"token_bounty"`        // p.ej. "25.50"
}

// reportResponse es el registro completo de un aviso.
type reportResponse struct {
	ID    uint64 `json:"id"`
	Owner string `json:"owner"`

	Name             string `json:"name"`
	Breed            string `json:"breed"`
	Gender           string `json:"gender"`
	SizeCm           uint64 `json:"size_cm"`
	AgeMonths        uint64 `json:"age_months"`
	DateTimeLost     string `json:"date_time_lost"`
	Description      string `json:"description"`
	ImageURL         string `json:"image_url"`
	LastSeenLocation string `json:"last_seen_location"`

	ContactName  string `json:"contact_name"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`

	EthBounty          string   `json:"eth_bounty"`
	TokenBounty        string   `json:"token_bounty"`
	EthBountyDisplay   string   `json:"eth_bounty_display"`
	TokenBountyDisplay string   `json:"token_bounty_display"`
	Currency           Currency `json:"currency"`

	IsFound         bool   `json:"is_found"`
	OwnerConfirmed  bool   `json:"owner_confirmed"`
	FinderConfirmed bool   `json:"finder_confirmed"`
	Finder          string `json:"finder,omitempty"`
	BountyClaimed   bool   `json:"bounty_claimed"`
	Cancelled       bool   `json:"cancelled"`
	Status          Status `json:"status"`
	Version         uint64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type listReportsResponse struct {
	IDs     []uint64         `json:"ids"`
	Reports []reportResponse `json:"reports"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  Kind   `json:"kind"`
}

// pendingResponse: el aviso quedó guardado pero la transferencia on-chain no se confirmó todavía.
type pendingResponse struct {
	Report reportResponse `json:"report"`
	Error  string         `json:"error"`
	Kind   Kind           `json:"kind"`
}

// postLostPetHandler godoc
// @Summary Publicar mascota perdida
// @Description Crea un aviso y mueve la recompensa a custodia. Para token, el dueño debe haber aprobado antes a la custodia (`POST /wallets/approve`). Autenticación: `X-Debug-Caller` (dev) o `Authorization: Bearer <mensaje>.<firma>` (wallet).
// @Tags reports
// @Accept json
// @Produce json
// @Param X-Debug-Caller header string false "Solo en modo dev, dirección del llamador"
// @Param Authorization header string false "Bearer con mensaje firmado"
// @Param payload body postLostPetRequest true "Datos de la mascota, contacto y recompensa"
// @Success 201 {object} reportResponse
// @Success 202 {object} pendingResponse "transferencia de token enviada, sin confirmar"
// @Failure 400 {object} errorResponse
// @Failure 401 {object} errorResponse
// @Failure 422 {object} errorResponse "transferencia a custodia fallida"
// @Router /reports [post]
func postLostPetHandler(svc *Service, d Display) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(r)
		if !ok {
			writeErrorMsg(w, http.StatusUnauthorized, "unauthorized", KindUnauthenticated)
			return
		}

		var req postLostPetRequest
		if err := decodeJSON(r, &req); err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "invalid json", KindInvalidInput)
			return
		}

		native, err := pickAmount(req.Value, req.EthBounty, d.Native)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "eth bounty: "+err.Error(), KindInvalidInput)
			return
		}
		token, err := pickAmount(req.TokenBountyAmount, req.TokenBounty, d.Token)
		if err != nil {
			writeErrorMsg(w, http.StatusBadRequest, "token bounty: "+err.Error(), KindInvalidInput)
			return
		}

		rep, err := svc.PostLostPet(r.Context(), caller, PostInput{
			Pet: PetDetails{
				Name:             req.Name,
				Breed:            req.Breed,
				Gender:           req.Gender,
				SizeCm:           req.SizeCm,
				AgeMonths:        req.AgeMonths,
				DateTimeLost:     req.DateTimeLost,
				Description:      req.Description,
				ImageURL:         req.ImageURL,
				LastSeenLocation: req.LastSeenLocation,
			},
			Contact: Contact{
				Name:  req.ContactName,
				Phone: req.ContactPhone,
				Email: req.ContactEmail,
			},
			NativeValue: native,
			TokenAmount: token,
		})
		if err != nil {
			writeResultError(w, rep, err, d)
			return
		}

		writeJSON(w, http.StatusCreated, toReportResponse(rep, d))
	}
}

// listReportsHandler godoc
// @Summary Listar avisos
// @Description Sin `offset`/`limit` devuelve todos los avisos (ids + registros). Con paginación, limit por defecto 50 y máximo 200. No requiere autenticación.
// @Tags reports
// @Produce json
// @Param offset query int false "Desde qué posición"
// @Param limit query int false "Máximo de avisos (1-200)"
// @Success 200 {object} listReportsResponse
// @Failure 400 {object} errorResponse
// @Router /reports [get]
func listReportsHandler(svc *Service, d Display) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var (
			ids   []uint64
			items []PetReport
			err   error
		)
		if q.Has("offset") || q.Has("limit") {
			page, perr := parsePage(q.Get("offset"), q.Get("limit"))
			if perr != nil {
				writeErrorMsg(w, http.StatusBadRequest, perr.Error(), KindInvalidInput)
				return
			}
			ids, items, err = svc.ListLostPets(r.Context(), page)
		} else {
			ids, items, err = svc.GetAllLostPets(r.Context())
		}
		if err != nil {
			writeError(w, err)
			return
		}

		out := listReportsResponse{
			IDs:     ids,
			Reports: make([]reportResponse, 0, len(items)),
		}
		for _, it := range items {
			out.Reports = append(out.Reports, toReportResponse(it, d))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// getReportHandler godoc
// @Summary Detalle de un aviso
// @Tags reports
// @Produce json
// @Param reportID path int true "ID del aviso"
// @Success 200 {object} reportResponse
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /reports/{reportID} [get]
func getReportHandler(svc *Service, d Display) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := reportID(w, r)
		if !ok {
			return
		}

		rep, err := svc.GetPetDetails(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReportResponse(rep, d))
	}
}

type transitionFunc func(ctx context.Context, caller common.Address, id uint64) (PetReport, error)

// transitionHandler godoc
// @Summary Transición de un aviso
// @Description `found`: el llamador queda como finder (no puede ser el dueño). `confirm`: el dueño confirma y el aviso queda encontrado. `claim`: el finder cobra la recompensa una sola vez. `cancel`: el dueño cancela antes de que haya finder y recupera el escrow.
// @Tags reports
// @Produce json
// @Param X-Debug-Caller header string false "Solo en modo dev, dirección del llamador"
// @Param Authorization header string false "Bearer con mensaje firmado"
// @Param reportID path int true "ID del aviso"
// @Param action path string true "found | confirm | claim | cancel"
// @Success 200 {object} reportResponse
// @Success 202 {object} pendingResponse "pago o devolución enviados, sin confirmar"
// @Failure 401 {object} errorResponse
// @Failure 403 {object} errorResponse "rol incorrecto"
// @Failure 404 {object} errorResponse
// @Failure 409 {object} errorResponse "estado no permite la transición"
// @Failure 422 {object} errorResponse "transferencia fallida"
// @Router /reports/{reportID}/{action} [post]
func transitionHandler(fn transitionFunc, d Display) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := callerFrom(r)
		if !ok {
			writeErrorMsg(w, http.StatusUnauthorized, "unauthorized", KindUnauthenticated)
			return
		}
		id, ok := reportID(w, r)
		if !ok {
			return
		}

		rep, err := fn(r.Context(), caller, id)
		if err != nil {
			writeResultError(w, rep, err, d)
			return
		}
		writeJSON(w, http.StatusOK, toReportResponse(rep, d))
	}
}

func callerFrom(r *http.Request) (common.Address, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || claims.Address == (common.Address{}) {
		return common.Address{}, false
	}
	return claims.Address, true
}

func reportID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "reportID"))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "report id must be a non-negative integer", KindInvalidInput)
		return 0, false
	}
	return id, true
}

// pickAmount: unidades base o decimal, no ambos.
func pickAmount(base, dec string, c units.Currency) (*big.Int, error) {
	base, dec = strings.TrimSpace(base), strings.TrimSpace(dec)
	switch {
	case base != "" && dec != "":
		return nil, errors.New("send base units or decimal amount, not both")
	case dec != "":
		return c.Parse(dec)
	default:
		return units.ParseBaseUnits(base)
	}
}

func parsePage(offsetRaw, limitRaw string) (Page, error) {
	var p Page
	if s := strings.TrimSpace(offsetRaw); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return Page{}, errors.New("offset must be a non-negative integer")
		}
		p.Offset = n
	}
	if s := strings.TrimSpace(limitRaw); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxPageLimit {
			return Page{}, errors.New("limit must be between 1 and 200")
		}
		p.Limit = n
	}
	return p.Clamp(), nil
}

func toReportResponse(r PetReport, d Display) reportResponse {
	out := reportResponse{
		ID:    r.ID,
		Owner: r.Owner.Hex(),

		Name:             r.Pet.Name,
		Breed:            r.Pet.Breed,
		Gender:           r.Pet.Gender,
		SizeCm:           r.Pet.SizeCm,
		AgeMonths:        r.Pet.AgeMonths,
		DateTimeLost:     r.Pet.DateTimeLost,
		Description:      r.Pet.Description,
		ImageURL:         r.Pet.ImageURL,
		LastSeenLocation: r.Pet.LastSeenLocation,

		ContactName:  r.Contact.Name,
		ContactPhone: r.Contact.Phone,
		ContactEmail: r.Contact.Email,

		EthBounty:          amountString(r.Bounty.Native),
		TokenBounty:        amountString(r.Bounty.Token),
		EthBountyDisplay:   d.Native.Format(r.Bounty.Native),
		TokenBountyDisplay: d.Token.Format(r.Bounty.Token),
		Currency:           r.Bounty.Currency(),

		IsFound:         r.IsFound,
		OwnerConfirmed:  r.OwnerConfirmed,
		FinderConfirmed: r.FinderConfirmed,
		BountyClaimed:   r.BountyClaimed,
		Cancelled:       r.Cancelled,
		Status:          r.Status(),
		Version:         r.Version,

		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.HasFinder() {
		out.Finder = r.Finder.Hex()
	}
	return out
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// StatusFor traduce el kind del error a código HTTP.
func StatusFor(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindAuthorization:
		return http.StatusForbidden
	case KindState, KindConflict:
		return http.StatusConflict
	case KindTransfer:
		return http.StatusUnprocessableEntity
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindPending:
		return http.StatusAccepted
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	kind := KindOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeErrorMsg(w, status, msg, kind)
}

// writeResultError: con KindPending el cambio de estado quedó hecho y se devuelve el aviso.
func writeResultError(w http.ResponseWriter, rep PetReport, err error, d Display) {
	if KindOf(err) == KindPending {
		writeJSON(w, http.StatusAccepted, pendingResponse{
			Report: toReportResponse(rep, d),
			Error:  err.Error(),
			Kind:   KindPending,
		})
		return
	}
	writeError(w, err)
}

func writeErrorMsg(w http.ResponseWriter, status int, msg string, kind Kind) {
	writeJSON(w, status, errorResponse{Error: msg, Kind: kind})
}

// decodeJSON rechaza campos desconocidos y más de un valor en el cuerpo.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after json body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
