package api

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/matheus3301/chatd/internal/auth"
	"github.com/matheus3301/chatd/internal/chat"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.hub.Online()
	body := envelope{
		"online": len(snap.Users),
		"seq":    snap.Seq,
		"pid":    os.Getpid(),
		"store":  s.opts.Engine,
	}
	if m := s.opts.Status; m != nil {
		body["state"] = m.Current()
		body["since"] = m.Since().UTC().Format(time.RFC3339)
	}
	ok(w, body)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var in chat.SignupInput
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	u, tok, err := s.chat.Signup(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, envelope{"userData": u, "token": tok, "message": "Account created successfully"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	u, tok, err := s.chat.Login(r.Context(), in.Email, in.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, envelope{"userData": u, "token": tok, "message": "Login successful"})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	u, err := s.chat.Profile(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, envelope{"user": u})
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in chat.ProfileInput
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.chat.UpdateProfile(r.Context(), auth.UserID(r.Context()), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, envelope{"user": u})
}

func (s *Server) handleOnline(w http.ResponseWriter, r *http.Request) {
	snap := s.hub.Online()
	ok(w, envelope{"users": snap.Users, "seq": snap.Seq})
}

func (s *Server) handleSidebar(w http.ResponseWriter, r *http.Request) {
	users, unseen, err := s.chat.Sidebar(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, envelope{"users": users, "unseenMessages": unseen})
}

func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.chat.Conversation(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, envelope{"messages": msgs})
}

func (s *Server) handleUnseen(w http.ResponseWriter, r *http.Request) {
	n, err := s.chat.CountUnseen(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, envelope{"count": n})
}

func (s *Server) handleMarkSeen(w http.ResponseWriter, r *http.Request) {
	if err := s.chat.MarkOneSeen(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, nil)
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	var in chat.SendInput
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	m, err := s.chat.Send(r.Context(), auth.UserID(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, envelope{"newMessage": m})
}
