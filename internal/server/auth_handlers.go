package server

import (
	"net/http"

	"github.com/pixelforge/forge/internal/services/iam"
	"github.com/pixelforge/forge/internal/validation"
)

// handleRegister creates an account. Admin only.
func (a *api) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(w, r, a.validator, validation.SchemaRegister, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	user, err := a.iam.Register(r.Context(), iam.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// handleLogin exchanges credentials for a bearer token. Public.
func (a *api) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, a.validator, validation.SchemaLogin, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	res, err := a.iam.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token:     res.Token,
		ID:        res.User.ID,
		Name:      res.User.Name,
		Role:      string(res.User.Role),
		ExpiresAt: res.ExpiresAt,
	})
}

func (a *api) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsOrError(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, a.validator, validation.SchemaChangePassword, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	if err := a.iam.ChangePassword(r.Context(), claims, req.CurrentPassword, req.NewPassword); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (a *api) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	claims, err := claimsOrError(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	user, err := a.iam.GetUser(r.Context(), claims.Subject)
	if err != nil {
		a.fail(w, r, err)
		return
	}

	resp := whoAmIResponse{User: toUserResponse(user), IssuedAt: claims.IssuedAt, ExpiresAt: claims.ExpiresAt}
	// The session's role is authoritative for this request.
	resp.User.Role = string(claims.Role)
	writeJSON(w, http.StatusOK, resp)
}

func (a *api) handleListDevelopers(w http.ResponseWriter, r *http.Request) {
	devs, err := a.iam.ListDevelopers(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	resp := make([]userResponse, 0, len(devs))
	for i := range devs {
		resp = append(resp, toUserResponse(&devs[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}
