package httpapi

import (
	"net/http"
	"strings"
	"time"

	"pokeswap.org/internal/auth"
)

const dateLayout = "2006-01-02"

type userResponse struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Login     string    `json:"login"`
	BirthDate string    `json:"birthDate"`
	Rights    []string  `json:"rights,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toUserResponse(u auth.User, rights auth.RightSet) userResponse {
	resp := userResponse{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Login:     u.Login,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
	if !u.BirthDate.IsZero() {
		resp.BirthDate = u.BirthDate.Format(dateLayout)
	}
	if rights != nil {
		resp.Rights = rights.Names()
	}
	return resp
}

type createUserRequest struct {
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Login     string   `json:"login"`
	Password  string   `json:"password"`
	BirthDate string   `json:"birthDate"`
	Rights    []string `json:"rights,omitempty"`
}

func (req createUserRequest) toNewUser() (auth.NewUser, error) {
	in := auth.NewUser{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Login:     req.Login,
		Password:  req.Password,
		Rights:    req.Rights,
	}
	if strings.TrimSpace(req.Password) == "" {
		return in, errMsg("password is required")
	}
	if req.BirthDate != "" {
		d, err := parseDate(req.BirthDate)
		if err != nil {
			return in, errMsg("birthDate must be YYYY-MM-DD")
		}
		in.BirthDate = d
	}
	return in, nil
}

type updateUserRequest struct {
	FirstName *string  `json:"firstName,omitempty"`
	LastName  *string  `json:"lastName,omitempty"`
	Login     *string  `json:"login,omitempty"`
	Password  *string  `json:"password,omitempty"`
	BirthDate *string  `json:"birthDate,omitempty"`
	Rights    []string `json:"rights,omitempty"`
}

func (req updateUserRequest) toUpdate() (auth.UserUpdate, error) {
	upd := auth.UserUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Login:     req.Login,
		Password:  req.Password,
		Rights:    req.Rights,
	}
	if req.Password != nil && strings.TrimSpace(*req.Password) == "" {
		return upd, errMsg("password must not be empty")
	}
	if req.BirthDate != nil {
		d, err := parseDate(*req.BirthDate)
		if err != nil {
			return upd, errMsg("birthDate must be YYYY-MM-DD")
		}
		upd.BirthDate = &d
	}
	return upd, nil
}

type errMsg string

func (e errMsg) Error() string { return string(e) }

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func (a *API) register(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if len(req.Rights) > 0 {
		badRequest(w, r, "rights cannot be chosen at registration")
		return
	}
	in, err := req.toNewUser()
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	user, err := a.auth.Register(r.Context(), in)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.record(r.Context(), "user.registered", map[string]string{"user_id": itoa(user.ID), "login": user.Login})
	writeJSON(w, http.StatusCreated, toUserResponse(user, auth.NewRightSet(auth.DefaultRights()...)))
}

func (a *API) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	in, err := req.toNewUser()
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	user, err := a.auth.CreateUser(r.Context(), in)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.record(r.Context(), "user.created", map[string]string{
		"user_id": itoa(user.ID),
		"login":   user.Login,
		"rights":  strings.Join(in.Rights, " "),
	})
	writeJSON(w, http.StatusCreated, toUserResponse(user, auth.NewRightSet(in.Rights...)))
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := parsePositiveInt(q.Get("page"), 1, 1, 1<<20)
	if err != nil {
		badRequest(w, r, "page must be a positive integer")
		return
	}
	size, err := parsePositiveInt(q.Get("pageSize"), auth.DefaultPageSize, 1, auth.MaxPageSize)
	if err != nil {
		badRequest(w, r, "pageSize must be a positive integer")
		return
	}
	res, err := a.auth.ListUsers(r.Context(), page, size)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	users := make([]userResponse, 0, len(res.Users))
	for _, u := range res.Users {
		users = append(users, toUserResponse(u, nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"users":    users,
		"total":    res.Total,
		"page":     res.Page,
		"pageSize": res.PageSize,
	})
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	user, err := a.auth.GetUser(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	rights, err := a.auth.UserRights(r.Context(), id)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user, rights))
}

func (a *API) updateSelf(w http.ResponseWriter, r *http.Request) {
	a.applyUserUpdate(w, r, identity(r).UserID, false)
}

func (a *API) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	a.applyUserUpdate(w, r, id, true)
}

// applyUserUpdate only lets the all-scoped route replace rights.
func (a *API) applyUserUpdate(w http.ResponseWriter, r *http.Request, id int64, allowRights bool) {
	var req updateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, r, err.Error())
		return
	}
	if req.Rights != nil && !allowRights {
		forbidden(w, r)
		return
	}
	upd, err := req.toUpdate()
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	user, err := a.auth.UpdateUser(r.Context(), id, upd)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	fields := map[string]string{"user_id": itoa(user.ID)}
	if upd.Rights != nil {
		fields["rights"] = strings.Join(upd.Rights, " ")
	}
	a.record(r.Context(), "user.updated", fields)
	writeJSON(w, http.StatusOK, toUserResponse(user, nil))
}

func (a *API) deleteSelf(w http.ResponseWriter, r *http.Request) {
	a.removeUser(w, r, identity(r).UserID)
}

func (a *API) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathUserID(r)
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	a.removeUser(w, r, id)
}

func (a *API) removeUser(w http.ResponseWriter, r *http.Request, id int64) {
	if err := a.auth.DeleteUser(r.Context(), id); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.record(r.Context(), "user.deleted", map[string]string{"user_id": itoa(id)})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listRights(w http.ResponseWriter, r *http.Request) {
	rights, err := a.auth.Rights(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rights": rights})
}
