package wallets

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"pettrace/internal/domain/reports"
	"pettrace/internal/middleware"
	"pettrace/internal/platform/units"
	"pettrace/internal/ports/funds"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, d reports.Display) {
	r.Route("/wallets", func(wr chi.Router) {
		wr.Get("/{address}", getBalancesHandler(svc, d))
		wr.Post("/approve", approveHandler(svc))
		wr.Post("/mint", mintHandler(svc))
	})
}

type balancesResponse struct {
	Address          string `json:"address"`
	Native           string `json:"native"`
	Token            string `json:"token"`
	CustodyAllowance string `json:"custody_allowance"`
	NativeDisplay    string `json:"native_display"`
	TokenDisplay     string `json:"token_display"`
}

type approveRequest struct {
	Amount string `json:"amount"` // unidades base del token
}

type mintRequest struct {
	Address string `json:"address"` // opcional; por defecto el llamador
	Native  string `json:"native"`
	Token   string `json:"token"`
}

// getBalancesHandler godoc
// @Summary Saldos de una dirección
// @Description Saldo nativo, saldo de token y allowance hacia la custodia del registro.
// @Tags wallets
// @Produce json
// @Param address path string true "Dirección 0x..."
// @Success 200 {object} balancesResponse
// @Failure 400 {string} string "dirección inválida"
// @Router /wallets/{address} [get]
func getBalancesHandler(svc *Service, d reports.Display) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(chi.URLParam(r, "address"))
		if !common.IsHexAddress(raw) {
			http.Error(w, "invalid address", http.StatusBadRequest)
			return
		}

		b, err := svc.Balances(r.Context(), common.HexToAddress(raw))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, balancesResponse{
			Address:          b.Address.Hex(),
			Native:           b.Native.String(),
			Token:            b.Token.String(),
			CustodyAllowance: b.Allowance.String(),
			NativeDisplay:    d.Native.Format(b.Native),
			TokenDisplay:     d.Token.Format(b.Token),
		})
	}
}

// approveHandler godoc
// @Summary Aprobar custodia
// @Description El llamador aprueba a la custodia para mover `amount` unidades base del token (reemplaza la allowance anterior). Solo con ledgers que lo soporten.
// @Tags wallets
// @Accept json
// @Param X-Debug-Caller header string false "Solo en modo dev, dirección del llamador"
// @Param payload body approveRequest true "Monto en unidades base"
// @Success 204
// @Failure 400 {string} string "monto inválido"
// @Failure 401 {string} string "unauthorized"
// @Failure 501 {string} string "ledger sin approve"
// @Router /wallets/approve [post]
func approveHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || claims.Address == (common.Address{}) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req approveRequest
		if err := decodeJSON(r, &req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		amount, err := units.ParseBaseUnits(req.Amount)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := svc.ApproveCustody(r.Context(), claims.Address, amount); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// mintHandler godoc
// @Summary Faucet de desarrollo
// @Description Acredita fondos de prueba. Solo si `dev_faucet` está activo y el ledger permite mint.
// @Tags wallets
// @Accept json
// @Param X-Debug-Caller header string false "Solo en modo dev, dirección del llamador"
// @Param payload body mintRequest true "Destino y montos en unidades base"
// @Success 204
// @Failure 400 {string} string "entrada inválida"
// @Failure 403 {string} string "faucet deshabilitado"
// @Router /wallets/mint [post]
func mintHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req mintRequest
		if err := decodeJSON(r, &req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var to common.Address
		switch raw := strings.TrimSpace(req.Address); {
		case raw != "":
			if !common.IsHexAddress(raw) {
				http.Error(w, "invalid address", http.StatusBadRequest)
				return
			}
			to = common.HexToAddress(raw)
		default:
			claims, ok := middleware.GetClaims(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			to = claims.Address
		}

		native, err := units.ParseBaseUnits(req.Native)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		token, err := units.ParseBaseUnits(req.Token)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		if err := svc.Mint(r.Context(), to, native, token); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, funds.ErrInvalidAmount), errors.Is(err, funds.ErrZeroAddress):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrFaucetDisabled):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, funds.ErrUnsupported):
		http.Error(w, err.Error(), http.StatusNotImplemented)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON está duplicado en cada módulo para no acoplar handlers.
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
