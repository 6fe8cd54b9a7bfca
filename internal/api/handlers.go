// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Thermoquad/lumen/pkg/ledconn"
	"github.com/Thermoquad/lumen/pkg/ledwire"
)

// APIResponse is the envelope for every reply.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type toggleData struct {
	State ledwire.DeviceState `json:"state"`
}

func (s *Server) sendJSON(w http.ResponseWriter, resp APIResponse, httpCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn().Err(err).Msg("failed to write response")
	}
}

func (s *Server) sendError(w http.ResponseWriter, err error) {
	s.sendJSON(w, APIResponse{
		Status:  "error",
		Message: err.Error(),
		Kind:    ledconn.KindOf(err).String(),
	}, statusFor(err))
}

func (s *Server) toggleHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if s.toggleWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.toggleWait)
		defer cancel()
	}

	state, err := s.link.Toggle(ctx)
	if err != nil {
		s.sendError(w, err)
		return
	}

	s.sendJSON(w, APIResponse{Status: "ok", Data: toggleData{State: state}}, http.StatusOK)
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, APIResponse{Status: "ok", Data: s.link.Status()}, http.StatusOK)
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		s.sendJSON(w, APIResponse{Status: "error", Message: "statistics disabled"}, http.StatusNotFound)
		return
	}
	snap := s.stats.Snapshot()
	s.sendJSON(w, APIResponse{Status: "ok", Data: map[string]any{
		"counters":   snap,
		"avg_rtt_ns": snap.AvgRTT(),
	}}, http.StatusOK)
}
