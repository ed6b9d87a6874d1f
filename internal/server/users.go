package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Sternrassler/user-service/internal/apperror"
	"github.com/Sternrassler/user-service/internal/user"
	"github.com/Sternrassler/user-service/pkg/pagination"
	"github.com/go-chi/chi/v5"
)

// listResponse is the data of GET /users.
type listResponse struct {
	Users []user.User     `json:"users"`
	Meta  pagination.Meta `json:"meta"`
}

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.FromRequest(r, s.opts.Pagination)
	if err != nil {
		s.writeError(w, r, apperror.BadRequest(err.Error()))
		return
	}

	result, err := s.opts.Users.List(r.Context(), page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeSuccess(w, r, http.StatusOK, listResponse{
		Users: result.Users,
		Meta:  pagination.NewMeta(page, len(result.Users), int64(result.Total)),
	})
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.opts.Users.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, u)
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var in user.CreateInput
	if err := decodeBody(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.opts.Users.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusCreated, u)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var in user.UpdateInput
	if err := decodeBody(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}

	u, err := s.opts.Users.Update(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, u)
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := userID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.opts.Users.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, r, http.StatusOK, map[string]int64{"user_id": id})
}

func userID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.BadRequest("Invalid user id").WithContext("id", raw)
	}
	return id, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperror.BadRequest("Request body too large")
		case errors.Is(err, io.EOF):
			return apperror.BadRequest("Request body is empty")
		default:
			return apperror.Wrap(apperror.KindBadRequest, err, "Invalid JSON body")
		}
	}
	return nil
}
