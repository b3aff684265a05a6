// Package server is the admin HTTP API: it lists committed shipments and updates
// the status and arrival columns of ledger rows.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/nurjigit18/shipledger/internal/common/httpx"
	"github.com/nurjigit18/shipledger/internal/common/middleware"
	"github.com/nurjigit18/shipledger/internal/shipbot/tracking"
)

// Tracker is the part of the tracking service the API needs.
type Tracker interface {
	ListShipments(ctx context.Context, sheet, userID string) ([]tracking.Shipment, error)
	SetStatus(ctx context.Context, sheet string, row int, status string) error
	SetActualArrival(ctx context.Context, sheet string, row int, date string) (string, error)
}

// Options configures an AdminServer.
type Options struct {
	Tracker        Tracker
	JWTSecret      []byte
	HandleCORS     bool
	RequestTimeout time.Duration
	// Ready, when set, is consulted by GET /ready.
	Ready func(ctx context.Context) error
}

// AdminServer routes the admin API.
type AdminServer struct {
	Router *chi.Mux
	opts   Options
}

func New(opts Options) *AdminServer {
	return &AdminServer{Router: chi.NewRouter(), opts: opts}
}

// MountHandlers installs middleware and routes.
func (s *AdminServer) MountHandlers() {
	s.Router.Use(middleware.RequestLogger)
	s.Router.Use(middleware.PanicHandler)
	if s.opts.HandleCORS {
		s.Router.Use(s.HandleCORS)
	}
	if s.opts.RequestTimeout > 0 {
		s.Router.Use(middleware.SetTimeout(s.opts.RequestTimeout))
	}

	s.Router.Get("/version", s.getVersion)
	s.Router.Get("/ready", s.getReadiness)
	s.Router.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.opts.JWTSecret))
		r.Route("/sheets/{sheet}", func(r chi.Router) {
			r.Get("/shipments", httpx.WrapHttpRsp(s.listShipments))
			r.Put("/rows/{row}/status", httpx.WrapHttpRsp(s.updateStatus))
			r.Put("/rows/{row}/actual-arrival", httpx.WrapHttpRsp(s.updateArrival))
		})
	})
}

type GetVersionRsp struct {
	ServerVersion string `json:"serverVersion"`
	ApiVersion    string `json:"apiVersion"`
}

func (s *AdminServer) getVersion(w http.ResponseWriter, r *http.Request) {
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, &GetVersionRsp{
		ServerVersion: "shipledger " + Version,
		ApiVersion:    APIVersion,
	})
}

func (s *AdminServer) getReadiness(w http.ResponseWriter, r *http.Request) {
	if s.opts.Ready != nil {
		if err := s.opts.Ready(r.Context()); err != nil {
			log.Ctx(r.Context()).Warn().Err(err).Msg("readiness check failed")
			httpx.SendJsonRsp(r.Context(), w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
			})
			return
		}
	}
	httpx.SendJsonRsp(r.Context(), w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}

type listShipmentsRsp struct {
	Sheet     string              `json:"sheet"`
	Shipments []tracking.Shipment `json:"shipments"`
}

func (s *AdminServer) listShipments(r *http.Request) (*httpx.Response, error) {
	sheet := chi.URLParam(r, "sheet")
	shipments, err := s.opts.Tracker.ListShipments(r.Context(), sheet, r.URL.Query().Get("user_id"))
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   &listShipmentsRsp{Sheet: sheet, Shipments: shipments},
	}, nil
}

type statusReq struct {
	Status string `json:"status"`
}

type arrivalReq struct {
	Date string `json:"date"`
}

type rowRsp struct {
	Sheet         string `json:"sheet"`
	Row           int    `json:"row"`
	Status        string `json:"status,omitempty"`
	ActualArrival string `json:"actual_arrival,omitempty"`
}

func (s *AdminServer) updateStatus(r *http.Request) (*httpx.Response, error) {
	sheet, row, err := rowParams(r)
	if err != nil {
		return nil, err
	}
	var req statusReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	if err := s.opts.Tracker.SetStatus(r.Context(), sheet, row, req.Status); err != nil {
		return nil, err
	}
	log.Ctx(r.Context()).Info().Str("by", Subject(r.Context())).Str("sheet", sheet).Int("row", row).Msg("status changed")
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   &rowRsp{Sheet: sheet, Row: row, Status: req.Status},
	}, nil
}

func (s *AdminServer) updateArrival(r *http.Request) (*httpx.Response, error) {
	sheet, row, err := rowParams(r)
	if err != nil {
		return nil, err
	}
	var req arrivalReq
	if err := httpx.GetRequestData(r, &req); err != nil {
		return nil, err
	}
	date, err := s.opts.Tracker.SetActualArrival(r.Context(), sheet, row, req.Date)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{
		StatusCode: http.StatusOK,
		Response:   &rowRsp{Sheet: sheet, Row: row, ActualArrival: date},
	}, nil
}

func rowParams(r *http.Request) (string, int, error) {
	row, err := strconv.Atoi(chi.URLParam(r, "row"))
	if err != nil || row < 1 {
		return "", 0, httpx.ErrInvalidRequest("row must be a positive integer")
	}
	return chi.URLParam(r, "sheet"), row, nil
}

// HandleCORS allows browser clients on any origin.
func (s *AdminServer) HandleCORS(next http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Length", "Accept-Encoding"},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}
