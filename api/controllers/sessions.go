package controllers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/fairwaylabs/fairway-pos-backend/api/responses"
	"github.com/fairwaylabs/fairway-pos-backend/api/validators"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/auth"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/config"
	pkgerrors "github.com/fairwaylabs/fairway-pos-backend/pkg/errors"
	"github.com/fairwaylabs/fairway-pos-backend/pkg/logger"
)

type openSessionRequest struct {
	ProvisionKey string `json:"provision_key" validate:"required"`
	RegisterID   string `json:"register_id" validate:"required"`
	EmployeeID   string `json:"employee_id" validate:"required"`
	EmployeeName string `json:"employee_name,omitempty"`
}

type openSessionResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// OpenRegisterSession mints a register session token. The back office presents
// the shared provision key; registers never hold the JWT secret themselves.
func OpenRegisterSession(cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body openSessionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if cfg.JWT.ProvisionKey == "" ||
			subtle.ConstantTimeCompare([]byte(body.ProvisionKey), []byte(cfg.JWT.ProvisionKey)) != 1 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid provision key"))
			return
		}

		now := time.Now().UTC()
		token, err := auth.MintRegisterToken(cfg.JWT, now, auth.RegisterSessionPayload{
			RegisterID:   body.RegisterID,
			EmployeeID:   body.EmployeeID,
			EmployeeName: body.EmployeeName,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "could not mint session token"))
			return
		}

		ctx := logg.WithFields(r.Context(), map[string]any{
			"register_id": body.RegisterID,
			"employee_id": body.EmployeeID,
		})
		logg.Info(ctx, "register session opened")
		responses.WriteSuccessStatus(w, http.StatusCreated, openSessionResponse{
			Token:     token,
			ExpiresAt: now.Add(cfg.JWT.TokenTTL()),
		})
	}
}
