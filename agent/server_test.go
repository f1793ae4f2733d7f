package agent

import (
	"bytes"
	"encoding/json"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/kamnsolar/field_capture/draftstore"
	"github.com/kamnsolar/field_capture/geo"
	"github.com/kamnsolar/field_capture/models"
	"github.com/kamnsolar/field_capture/session"
	"github.com/kamnsolar/field_capture/surveyapi"
	"github.com/kamnsolar/field_capture/surveyapi/surveyapitest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *surveyapitest.Server) {
	t.Helper()
	srv := surveyapitest.NewServer()
	t.Cleanup(srv.Close)
	sess := session.New(
		draftstore.New(draftstore.NewMemoryBackend()),
		surveyapi.NewClient(srv.APIURL(), 5*time.Second),
		geo.NewCapturer(geo.DeniedLocator{}, nil, time.Second),
		session.PhotoOptions{MaxEdge: 400, JPEGQuality: 80},
	)
	return NewRouter(sess, Options{}), srv
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func uploadPhoto(t *testing.T, r http.Handler, section, slot string, form map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	img := imaging.New(300, 300, color.NRGBA{G: 255, A: 255})
	var photo bytes.Buffer
	if err := imaging.Encode(&photo, img, imaging.JPEG); err != nil {
		t.Fatalf("encode: %v", err)
	}
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("photo", "photo.jpg")
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	part.Write(photo.Bytes())
	for k, v := range form {
		mw.WriteField(k, v)
	}
	mw.Close()

	path := "/api/slots/" + section + "/" + url.PathEscape(slot) + "/photo"
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) session.View {
	t.Helper()
	var view session.View
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v (%s)", err, w.Body.String())
	}
	return view
}

func createCustomer(t *testing.T, r http.Handler) session.View {
	t.Helper()
	form := map[string]string{"name": "A", "district": "D", "plantType": "4kw", "mobile": "9990001111", "address": "X"}
	if w := doJSON(t, r, http.MethodPut, "/api/session/form", form); w.Code != http.StatusOK {
		t.Fatalf("form: %d %s", w.Code, w.Body.String())
	}
	w := doJSON(t, r, http.MethodPost, "/api/customers", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", w.Code, w.Body.String())
	}
	return decodeView(t, w)
}

func TestRouter_HealthzAndNoRoute(t *testing.T) {
	r, _ := newTestRouter(t)
	if w := doJSON(t, r, http.MethodGet, "/healthz", nil); w.Code != http.StatusNoContent {
		t.Fatalf("healthz: %d", w.Code)
	}
	w := doJSON(t, r, http.MethodGet, "/nope", nil)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "route not found") {
		t.Fatalf("no route: %d %s", w.Code, w.Body.String())
	}
	if w.Header().Get("x-correlation-id") == "" {
		t.Fatalf("expected a correlation id header")
	}
}

func TestRouter_CreateValidationFailure(t *testing.T) {
	r, _ := newTestRouter(t)
	w := doJSON(t, r, http.MethodPost, "/api/customers", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var body struct {
		Fields map[string]string `json:"fields"`
	}
	json.Unmarshal(w.Body.Bytes(), &body)
	if body.Fields["name"] != "required" || body.Fields["plantType"] != "required" {
		t.Fatalf("unexpected fields %v", body.Fields)
	}
}

func TestRouter_CaptureThumbnailAndSubmit(t *testing.T) {
	r, srv := newTestRouter(t)
	view := createCustomer(t, r)
	if view.State != session.StateCapturingPhotos {
		t.Fatalf("expected capturing state, got %s", view.State)
	}

	w := uploadPhoto(t, r, "wifi", "WiFi Configuration", map[string]string{"latitude": "12.9", "longitude": "77.6", "accuracy": "5"})
	if w.Code != http.StatusOK {
		t.Fatalf("capture: %d %s", w.Code, w.Body.String())
	}
	wifi, _ := decodeView(t, w).Section(models.SectionWifi)
	if wifi.Slots[0].Geolocation == nil || wifi.Slots[0].Geolocation.Latitude != 12.9 {
		t.Fatalf("reported fix not applied: %+v", wifi.Slots[0])
	}

	thumbPath := "/api/slots/wifi/" + url.PathEscape("WiFi Configuration") + "/thumbnail"
	w = doJSON(t, r, http.MethodGet, thumbPath, nil)
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/jpeg" {
		t.Fatalf("thumbnail: %d %s", w.Code, w.Header().Get("Content-Type"))
	}
	thumb, err := imaging.Decode(bytes.NewReader(w.Body.Bytes()))
	if err != nil || thumb.Bounds().Dx() != 200 {
		t.Fatalf("unexpected thumbnail: %v", err)
	}

	w = doJSON(t, r, http.MethodPost, "/api/sections/wifi/submit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", w.Code, w.Body.String())
	}
	if srv.UploadCount() != 1 {
		t.Fatalf("expected one upload, got %d", srv.UploadCount())
	}

	w = doJSON(t, r, http.MethodGet, thumbPath, nil)
	if w.Code != http.StatusFound {
		t.Fatalf("confirmed slot should redirect, got %d", w.Code)
	}
	if w := uploadPhoto(t, r, "wifi", "WiFi Configuration", nil); w.Code != http.StatusConflict {
		t.Fatalf("recapture of confirmed slot: %d", w.Code)
	}
}

func TestRouter_SubmitAllPartial(t *testing.T) {
	r, srv := newTestRouter(t)
	createCustomer(t, r)
	for _, slot := range models.SlotsFor(models.SectionLA, "4kw") {
		if w := uploadPhoto(t, r, "la", slot, map[string]string{"skipGeolocation": "true"}); w.Code != http.StatusOK {
			t.Fatalf("capture: %d %s", w.Code, w.Body.String())
		}
	}
	for _, slot := range models.SlotsFor(models.SectionDCDB, "4kw") {
		if w := uploadPhoto(t, r, "dcdb", slot, nil); w.Code != http.StatusOK {
			t.Fatalf("capture: %d", w.Code)
		}
	}
	srv.FailSection(models.SectionDCDB, http.StatusInternalServerError)

	w := doJSON(t, r, http.MethodPost, "/api/submit", nil)
	if w.Code != http.StatusMultiStatus {
		t.Fatalf("expected 207, got %d %s", w.Code, w.Body.String())
	}
	var resp batchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "partial" || len(resp.Failed) != 1 || resp.Failed[0] != models.SectionDCDB {
		t.Fatalf("unexpected batch %+v", resp)
	}
}

func TestRouter_ConflictsAndBadInput(t *testing.T) {
	r, _ := newTestRouter(t)
	if w := doJSON(t, r, http.MethodPost, "/api/submit", nil); w.Code != http.StatusConflict {
		t.Fatalf("submit without customer: %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/customers/search", models.CustomerFilter{Name: "ghost"}); w.Code != http.StatusNotFound {
		t.Fatalf("search miss: %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodDelete, "/api/sections/roof", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown section: %d", w.Code)
	}
	createCustomer(t, r)
	if w := doJSON(t, r, http.MethodPut, "/api/session/form", map[string]string{"name": "B"}); w.Code != http.StatusConflict {
		t.Fatalf("form edit while capturing: %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPost, "/api/customers/current/edit", nil); w.Code != http.StatusOK {
		t.Fatalf("edit: %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPut, "/api/session/form", map[string]string{"technician": "Suresh"}); w.Code != http.StatusOK {
		t.Fatalf("form edit while editing: %d", w.Code)
	}
	w := doJSON(t, r, http.MethodPut, "/api/customers/current", nil)
	if w.Code != http.StatusOK || decodeView(t, w).Customer.Technician != "Suresh" {
		t.Fatalf("save: %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodDelete, "/api/session", nil)
	if w.Code != http.StatusOK || decodeView(t, w).State != session.StateNoActiveCustomer {
		t.Fatalf("clear all: %d %s", w.Code, w.Body.String())
	}
}
