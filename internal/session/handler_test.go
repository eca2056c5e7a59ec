package session

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"interiorDesignAi/internal/design"
	"interiorDesignAi/internal/events"
	"interiorDesignAi/internal/storage"
)

type handlerFixture struct {
	gw      *fakeGateway
	manager *Manager
	reports *storage.InMemoryStore
	server  *httptest.Server
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gw := newFakeGateway()
	reports := storage.NewInMemoryStore()
	broker := events.NewBroker()
	manager := NewManager(Options{
		Gateway:   gw,
		Archive:   NewReportArchive(reports, nil, nil),
		Publisher: broker,
	})

	sample := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(append(append([]byte(nil), pngHeader...), "sample"...))
	}))
	t.Cleanup(sample.Close)

	router := chi.NewRouter()
	router.Route("/api", Handler{
		Manager:        manager,
		Broker:         broker,
		Reports:        reports,
		SampleImageURL: sample.URL,
	}.Register)
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		manager.Close()
	})
	return &handlerFixture{gw: gw, manager: manager, reports: reports, server: server}
}

func (f *handlerFixture) do(t *testing.T, method, path, contentType string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeSnapshot(t *testing.T, resp *http.Response) Snapshot {
	t.Helper()
	var snap Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	return snap
}

func (f *handlerFixture) createSession(t *testing.T) string {
	t.Helper()
	resp := f.do(t, http.MethodPost, "/api/sessions", "", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	snap := decodeSnapshot(t, resp)
	require.NotEmpty(t, snap.ID)
	return snap.ID
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return buf.String()
}

func TestHandlerUnknownSession(t *testing.T) {
	f := newHandlerFixture(t)

	resp := f.do(t, http.MethodGet, "/api/sessions/missing", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerAnalyzeWithoutRoom(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.createSession(t)

	resp := f.do(t, http.MethodPost, "/api/sessions/"+id+"/analysis", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, readBody(t, resp), "Please upload an image of your room first")
	require.Zero(t, f.gw.count("analyze"))
}

func TestHandlerFullFlow(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.createSession(t)
	base := "/api/sessions/" + id

	room := append(append([]byte(nil), pngHeader...), "room"...)
	resp := f.do(t, http.MethodPut, base+"/room?wait=true", "application/octet-stream", room)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeSnapshot(t, resp)
	require.True(t, snap.HasRoomImage)
	require.Equal(t, "5m", snap.Preferences.Dimensions.Length)

	patch := []byte(`{"style":"Modern","instructions":"remove the red armchair"}`)
	resp = f.do(t, http.MethodPatch, base+"/preferences", "application/json", patch)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, design.StyleModern, decodeSnapshot(t, resp).Preferences.Style)

	resp = f.do(t, http.MethodPost, base+"/analysis?wait=true", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeSnapshot(t, resp)
	require.Equal(t, StatusSucceeded, snap.Stages[StageAnalysis].Status)
	require.NotEmpty(t, snap.ReportID)

	resp = f.do(t, http.MethodGet, base+"/views/2d/image", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = f.do(t, http.MethodPost, base+"/views/2d?wait=true", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, StatusSucceeded, decodeSnapshot(t, resp).Views[design.ViewTwoD].Status)

	resp = f.do(t, http.MethodGet, base+"/views/2d/image", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	require.True(t, strings.HasPrefix(readBody(t, resp), string(pngHeader)))

	resp = f.do(t, http.MethodGet, "/api/reports?session_id="+id, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var reports []storage.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&reports))
	require.Len(t, reports, 1)
	require.Equal(t, snap.ReportID, reports[0].ID)
	require.Equal(t, "remove the red armchair", reports[0].Instructions)

	resp = f.do(t, http.MethodPost, base+"/restart", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap = decodeSnapshot(t, resp)
	require.False(t, snap.HasRoomImage)
	require.Nil(t, snap.Analysis)
}

func TestHandlerRejectsUnsupportedUpload(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.createSession(t)

	resp := f.do(t, http.MethodPut, "/api/sessions/"+id+"/room", "text/plain", []byte("not an image"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Zero(t, f.gw.count("estimate"))
}

func TestHandlerMultipartUploads(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.createSession(t)
	base := "/api/sessions/" + id

	body, contentType := multipartBody(t, "image_file", 1)
	resp := f.do(t, http.MethodPut, base+"/room", contentType, body)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.True(t, decodeSnapshot(t, resp).HasRoomImage)

	body, contentType = multipartBody(t, "furniture_files", 2)
	resp = f.do(t, http.MethodPost, base+"/furniture", contentType, body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 2, decodeSnapshot(t, resp).FurnitureCount)

	resp = f.do(t, http.MethodDelete, base+"/furniture/1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, decodeSnapshot(t, resp).FurnitureCount)

	resp = f.do(t, http.MethodDelete, base+"/furniture/7", "", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandlerSampleRoom(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.createSession(t)

	resp := f.do(t, http.MethodPost, "/api/sessions/"+id+"/room/sample?wait=true", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	snap := decodeSnapshot(t, resp)
	require.True(t, snap.HasRoomImage)
	require.Equal(t, "image/png", snap.RoomMIMEType)
}

func TestHandlerInvalidPreferences(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.createSession(t)

	resp := f.do(t, http.MethodPatch, "/api/sessions/"+id+"/preferences", "application/json", []byte(`{"language":"fr"}`))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Contains(t, readBody(t, resp), "Unknown language")
}

func TestHandlerUnknownView(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.createSession(t)

	resp := f.do(t, http.MethodPost, "/api/sessions/"+id+"/views/sideways", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandlerDeleteSession(t *testing.T) {
	f := newHandlerFixture(t)
	id := f.createSession(t)

	resp := f.do(t, http.MethodDelete, "/api/sessions/"+id, "", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	require.Zero(t, f.manager.Len())

	resp = f.do(t, http.MethodDelete, "/api/sessions/"+id, "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusServiceUnavailable, statusFor(design.ErrConfig))
	require.Equal(t, http.StatusBadGateway, statusFor(design.ErrGeneration))
	require.Equal(t, http.StatusBadRequest, statusFor(design.Validationf("x")))
	require.Equal(t, http.StatusGone, statusFor(ErrClosed))
	require.Equal(t, http.StatusNotFound, statusFor(storage.ErrNotFound))
}

func multipartBody(t *testing.T, field string, n int) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for i := 0; i < n; i++ {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="`+field+`"; filename="photo.png"`)
		header.Set("Content-Type", "image/png")
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(append(append([]byte(nil), pngHeader...), byte('a'+i)))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return buf.Bytes(), mw.FormDataContentType()
}
