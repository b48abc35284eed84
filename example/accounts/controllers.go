// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/z5labs/switchyard/controller"
	"github.com/z5labs/switchyard/pipeline"
)

var controllerTypes = map[string]controller.Factory{
	"accounts.Health":  NewHealth,
	"accounts.List":    NewList,
	"accounts.Me":      NewMe,
	"accounts.Account": NewAccount,
}

func writeJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

type Health struct{}

func NewHealth(string) (controller.Controller, error) {
	return Health{}, nil
}

func (Health) Routes(rs *controller.Routes) {
	rs.Get("index", pipeline.HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		_, err := io.WriteString(w, "ok")
		return err
	}))
}

type CreateAccountRequest struct {
	Name string `json:"name"`
}

type List struct {
	store controller.Value[*Store]
	now   controller.Value[time.Time]
}

func NewList(string) (controller.Controller, error) {
	return &List{}, nil
}

func (l *List) Routes(rs *controller.Routes) {
	rs.Import("store", &l.store)
	rs.Import("now", &l.now)
	rs.Get("index", pipeline.HandlerFunc(l.list))
	rs.Post("index", pipeline.HandlerFunc(l.create), controller.Body("json", CreateAccountRequest{}))
}

func (l *List) list(w http.ResponseWriter, r *http.Request) error {
	return writeJSON(w, http.StatusOK, l.store.Get().List())
}

func (l *List) create(w http.ResponseWriter, r *http.Request) error {
	req, _ := bodyOf[CreateAccountRequest](r)
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return badRequest{Cause: errors.New("name is required")}
	}
	return writeJSON(w, http.StatusCreated, l.store.Get().Create(name, l.now.Get()))
}

// Me is served from a literal file, so it is tried before the
// parameterized account route for the same path.
type Me struct {
	user controller.Value[string]
}

func NewMe(string) (controller.Controller, error) {
	return &Me{}, nil
}

func (m *Me) Routes(rs *controller.Routes) {
	rs.ImportKey("user", "currentUser", &m.user)
	rs.Get("index", pipeline.HandlerFunc(func(w http.ResponseWriter, r *http.Request) error {
		return writeJSON(w, http.StatusOK, map[string]string{"user": m.user.Get()})
	}))
}

type Account struct {
	filename string
	store    controller.Value[*Store]
	log      controller.Value[*slog.Logger]
}

func NewAccount(filename string) (controller.Controller, error) {
	return &Account{filename: filename}, nil
}

func (a *Account) Routes(rs *controller.Routes) {
	rs.Import("store", &a.store)
	rs.Import("log", &a.log)
	rs.Use(pipeline.MiddlewareFunc(a.logAccess))
	rs.Get("index", pipeline.HandlerFunc(a.show))
	rs.Delete("index", pipeline.HandlerFunc(a.remove))
}

func (a *Account) logAccess(w http.ResponseWriter, r *http.Request, next *pipeline.Next) error {
	a.log.Get().InfoContext(r.Context(), "account accessed", slog.String("id", r.PathValue("id")), slog.String("controller", a.filename))
	next.Advance(nil)
	return nil
}

func (a *Account) show(w http.ResponseWriter, r *http.Request) error {
	acct, err := a.store.Get().Get(r.PathValue("id"))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, acct)
}

func (a *Account) remove(w http.ResponseWriter, r *http.Request) error {
	err := a.store.Get().Delete(r.PathValue("id"))
	if err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func handleError(log *slog.Logger) func(http.ResponseWriter, *http.Request, error) error {
	return func(w http.ResponseWriter, r *http.Request, err error) error {
		var br badRequest
		switch {
		case errors.As(err, &br):
			return writeJSON(w, http.StatusBadRequest, map[string]string{"error": br.Cause.Error()})
		case errors.Is(err, errAccountNotFound):
			return writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		default:
			log.ErrorContext(r.Context(), "unexpected error", slog.Any("error", err))
			return writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
	}
}
