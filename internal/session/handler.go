package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"interiorDesignAi/internal/design"
	"interiorDesignAi/internal/events"
	"interiorDesignAi/internal/logging"
	"interiorDesignAi/internal/media"
	"interiorDesignAi/internal/storage"
)

const (
	maxFurnitureFiles = 10
	multipartOverhead = 1 << 20
	keepAliveInterval = 25 * time.Second
)

// Handler bundles dependencies for session and report endpoints.
type Handler struct {
	Manager        *Manager
	Broker         *events.Broker
	Reports        storage.Store
	SampleImageURL string
	HTTPClient     *http.Client
}

// Register mounts the session and report routes.
func (h Handler) Register(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Delete("/", h.Delete)
			r.Post("/restart", h.Restart)
			r.Put("/room", h.SetRoom)
			r.Delete("/room", h.ClearRoom)
			r.Post("/room/sample", h.UseSample)
			r.Post("/furniture", h.AddFurniture)
			r.Delete("/furniture/{index}", h.RemoveFurniture)
			r.Patch("/preferences", h.UpdatePreferences)
			r.Post("/analysis", h.Analyze)
			r.Post("/views/{view}", h.ActivateView)
			r.Get("/views/{view}/image", h.ViewImage)
			r.Get("/events", h.StreamEvents)
		})
	})
	if h.Reports != nil {
		r.Route("/reports", func(r chi.Router) {
			r.Get("/", h.ListReports)
			r.Get("/{id}", h.GetReport)
			r.Delete("/{id}", h.DeleteReport)
		})
	}
}

// Create handles POST /api/sessions.
func (h Handler) Create(w http.ResponseWriter, r *http.Request) {
	s := h.Manager.Create()
	writeJSONStatus(w, http.StatusCreated, s.Snapshot())
}

// Get handles GET /api/sessions/{id}.
func (h Handler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, s.Snapshot())
}

// Delete handles DELETE /api/sessions/{id}.
func (h Handler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Manager.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Restart handles POST /api/sessions/{id}/restart.
func (h Handler) Restart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Restart(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, s.Snapshot())
}

// SetRoom handles PUT /api/sessions/{id}/room with either a multipart
// image_file field or a raw image body.
func (h Handler) SetRoom(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	var (
		img media.InlineImage
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(media.MaxImageBytes + multipartOverhead); err != nil {
			http.Error(w, fmt.Sprintf("could not parse form: %v", err), http.StatusBadRequest)
			return
		}
		file, header, ferr := r.FormFile("image_file")
		if ferr != nil {
			http.Error(w, "image_file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()
		img, err = encodeUpload(file, header)
	} else {
		img, err = media.Encode(r.Body, r.Header.Get("Content-Type"))
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	done, err := s.SetRoomImage(img)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondStarted(w, r, s, done)
}

// ClearRoom handles DELETE /api/sessions/{id}/room.
func (h Handler) ClearRoom(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.ClearRoomImage(); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, s.Snapshot())
}

// UseSample handles POST /api/sessions/{id}/room/sample.
func (h Handler) UseSample(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if strings.TrimSpace(h.SampleImageURL) == "" {
		http.Error(w, "sample image not configured", http.StatusServiceUnavailable)
		return
	}
	img, err := media.Fetch(r.Context(), h.HTTPClient, h.SampleImageURL)
	if err != nil {
		logging.FromContext(r.Context()).Warn("sample image fetch failed", zap.Error(err))
		http.Error(w, "Could not load the sample image.", http.StatusBadGateway)
		return
	}
	done, err := s.SetRoomImage(img)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondStarted(w, r, s, done)
}

// AddFurniture handles POST /api/sessions/{id}/furniture (multipart furniture_files).
func (h Handler) AddFurniture(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(maxFurnitureFiles*media.MaxImageBytes + multipartOverhead); err != nil {
		http.Error(w, fmt.Sprintf("could not parse form: %v", err), http.StatusBadRequest)
		return
	}
	headers := r.MultipartForm.File["furniture_files"]
	if len(headers) == 0 {
		http.Error(w, "furniture_files is required", http.StatusBadRequest)
		return
	}
	if len(headers) > maxFurnitureFiles {
		http.Error(w, fmt.Sprintf("at most %d furniture images per request", maxFurnitureFiles), http.StatusBadRequest)
		return
	}

	imgs := make([]media.InlineImage, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			http.Error(w, "could not read file", http.StatusBadRequest)
			return
		}
		img, err := encodeUpload(file, header)
		file.Close()
		if err != nil {
			writeError(w, r, fmt.Errorf("%s: %w", header.Filename, err))
			return
		}
		imgs = append(imgs, img)
	}

	if err := s.AddFurniture(imgs...); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, s.Snapshot())
}

// RemoveFurniture handles DELETE /api/sessions/{id}/furniture/{index}.
func (h Handler) RemoveFurniture(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, "invalid index", http.StatusBadRequest)
		return
	}
	if err := s.RemoveFurniture(index); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, s.Snapshot())
}

// UpdatePreferences handles PATCH /api/sessions/{id}/preferences.
func (h Handler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var patch PreferencesPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if _, err := s.UpdatePreferences(patch); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, s.Snapshot())
}

// Analyze handles POST /api/sessions/{id}/analysis.
func (h Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	done, err := s.Analyze()
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondStarted(w, r, s, done)
}

// ActivateView handles POST /api/sessions/{id}/views/{view}.
func (h Handler) ActivateView(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	view, ok := design.ParseView(chi.URLParam(r, "view"))
	if !ok {
		http.Error(w, "unknown view", http.StatusNotFound)
		return
	}
	done, err := s.ActivateView(view)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.respondStarted(w, r, s, done)
}

// ViewImage handles GET /api/sessions/{id}/views/{view}/image.
func (h Handler) ViewImage(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	view, ok := design.ParseView(chi.URLParam(r, "view"))
	if !ok {
		http.Error(w, "unknown view", http.StatusNotFound)
		return
	}
	img, ok := s.ViewImage(view)
	if !ok {
		http.Error(w, "view not generated", http.StatusNotFound)
		return
	}
	data, err := media.InlineImage{Data: img.Data, MIMEType: img.MIME}.Bytes()
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", img.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

// StreamEvents handles GET /api/sessions/{id}/events as server-sent events.
func (h Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if h.Broker == nil {
		http.Error(w, "events inactive", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ch := h.Broker.Subscribe(s.ID())
	defer h.Broker.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, "snapshot", s.Snapshot()); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			if err := writeSSE(w, "stage", evt); err != nil {
				return
			}
			flusher.Flush()
		case <-keepAlive.C:
			if _, err := io.WriteString(w, ": keep-alive\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// ListReports handles GET /api/reports?session_id=.
func (h Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.Reports.ListReports(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, reports)
}

// GetReport handles GET /api/reports/{id}.
func (h Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Reports.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, report)
}

// DeleteReport handles DELETE /api/reports/{id}.
func (h Handler) DeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := h.Reports.DeleteReport(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	s, err := h.Manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return s, true
}

// respondStarted answers 202 with the snapshot, or waits for the stage to
// finish when ?wait=true is given.
func (h Handler) respondStarted(w http.ResponseWriter, r *http.Request, s *Session, done <-chan struct{}) {
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait && done != nil {
		select {
		case <-done:
			writeJSON(w, s.Snapshot())
		case <-r.Context().Done():
		}
		return
	}
	writeJSONStatus(w, http.StatusAccepted, s.Snapshot())
}

func encodeUpload(file multipart.File, header *multipart.FileHeader) (media.InlineImage, error) {
	if header.Size > media.MaxImageBytes {
		return media.InlineImage{}, media.ErrTooLarge
	}
	img, err := media.Encode(file, header.Header.Get("Content-Type"))
	if err != nil {
		return media.InlineImage{}, err
	}
	if img.Empty() && header.Size > 0 {
		return media.InlineImage{}, media.ErrEncoding
	}
	return img, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrClosed):
		return http.StatusGone
	case errors.Is(err, design.ErrValidation),
		errors.Is(err, media.ErrEncoding),
		errors.Is(err, media.ErrUnsupportedType),
		errors.Is(err, media.ErrTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, design.ErrConfig):
		return http.StatusServiceUnavailable
	case errors.Is(err, design.ErrInvalidResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := Message(err)
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, storage.ErrNotFound), errors.Is(err, ErrClosed):
		msg = err.Error()
	case status == http.StatusInternalServerError:
		logging.FromContext(r.Context()).Error("request failed", zap.Error(err))
	}
	http.Error(w, msg, status)
}

func writeSSE(w io.Writer, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeJSON(w http.ResponseWriter, payload any) {
	writeJSONStatus(w, http.StatusOK, payload)
}

func writeJSONStatus(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
