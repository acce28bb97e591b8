package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-kiwify-fulfillment/internal/kiwify"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/products"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/sales"
	"github.com/imrishuroy/go-kiwify-fulfillment/internal/webhook"
)

const testAdminKey = "s3cret"

type fakeProcessor struct {
	calls int
	body  string
	err   error
}

func (f *fakeProcessor) Process(ctx context.Context, body []byte) (*webhook.Result, error) {
	f.calls++
	f.body = string(body)
	if f.err != nil {
		return nil, f.err
	}
	return &webhook.Result{}, nil
}

type fakeCatalog struct {
	items   map[string]products.Product
	created []products.Product
	updates []products.Update
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{items: map[string]products.Product{}}
}

func (f *fakeCatalog) Create(ctx context.Context, p products.Product) (*products.Product, error) {
	p.ID = fmt.Sprintf("p%d", len(f.created)+1)
	f.created = append(f.created, p)
	f.items[p.ID] = p
	return &p, nil
}

func (f *fakeCatalog) Get(ctx context.Context, id string) (*products.Product, error) {
	p, ok := f.items[id]
	if !ok {
		return nil, products.ErrNotFound
	}
	return &p, nil
}

func (f *fakeCatalog) List(ctx context.Context) ([]products.Product, error) {
	var out []products.Product
	for _, p := range f.items {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeCatalog) Update(ctx context.Context, id string, u products.Update) (*products.Product, error) {
	p, ok := f.items[id]
	if !ok {
		return nil, products.ErrNotFound
	}
	f.updates = append(f.updates, u)
	if u.FileURL != nil {
		p.FileURL = *u.FileURL
	}
	f.items[id] = p
	return &p, nil
}

func (f *fakeCatalog) Delete(ctx context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return products.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

type fakeSales struct {
	list []sales.Sale
	err  error
}

func (f *fakeSales) List(ctx context.Context) ([]sales.Sale, error) { return f.list, f.err }

type fakeUploader struct {
	filename string
	body     string
	err      error
}

func (f *fakeUploader) Upload(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	b, _ := io.ReadAll(body)
	f.filename = filename
	f.body = string(b)
	return "https://cdn.example.com/abc.pdf", nil
}

type testDeps struct {
	proc     *fakeProcessor
	catalog  *fakeCatalog
	sales    *fakeSales
	uploader *fakeUploader
}

func newTestRouter(t *testing.T) (*gin.Engine, *testDeps) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logrus.New()
	log.SetOutput(io.Discard)

	d := &testDeps{
		proc:     &fakeProcessor{},
		catalog:  newFakeCatalog(),
		sales:    &fakeSales{},
		uploader: &fakeUploader{},
	}
	r := NewRouter(HandlerConfig{
		Webhook:     d.proc,
		Products:    d.catalog,
		Sales:       d.sales,
		Uploads:     d.uploader,
		AdminAPIKey: testAdminKey,
		Logger:      log,
	})
	return r, d
}

func do(r http.Handler, method, path string, body io.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("response is not a JSON object: %q", w.Body.String())
	}
	return m
}

var adminHeaders = map[string]string{"Authorization": "Bearer " + testAdminKey}

func TestWebhook_Preflight(t *testing.T) {
	r, d := newTestRouter(t)

	w := do(r, http.MethodOptions, "/kiwify-webhook", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", w.Body.String())
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow-origin: %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Headers"); got != "authorization, x-client-info, apikey, content-type" {
		t.Fatalf("unexpected allow-headers: %q", got)
	}
	if d.proc.calls != 0 {
		t.Fatal("preflight must not process")
	}
}

func TestWebhook_RejectsOtherMethods(t *testing.T) {
	r, d := newTestRouter(t)

	for _, m := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		w := do(r, m, "/kiwify-webhook", nil, nil)
		if w.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", m, w.Code)
		}
		if w.Body.String() != "Method Not Allowed" {
			t.Fatalf("%s: unexpected body %q", m, w.Body.String())
		}
	}
	if d.proc.calls != 0 {
		t.Fatal("rejected methods must not process")
	}
}

func TestWebhook_Success(t *testing.T) {
	r, d := newTestRouter(t)

	w := do(r, http.MethodPost, "/kiwify-webhook", strings.NewReader(`{"order_id":"T1"}`), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if got := decode(t, w)["message"]; got != "Webhook processed successfully" {
		t.Fatalf("unexpected message: %v", got)
	}
	if d.proc.body != `{"order_id":"T1"}` {
		t.Fatalf("processor got %q", d.proc.body)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatal("expected CORS header on POST response")
	}
}

func TestWebhook_MissingTransactionID(t *testing.T) {
	r, d := newTestRouter(t)
	d.proc.err = kiwify.ErrMissingTransactionID

	w := do(r, http.MethodPost, "/kiwify-webhook", strings.NewReader(`{}`), nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if got := decode(t, w)["error"]; got != "Missing transaction ID" {
		t.Fatalf("unexpected error: %v", got)
	}
}

func TestWebhook_ProcessingErrors(t *testing.T) {
	r, d := newTestRouter(t)

	cases := []error{
		fmt.Errorf("persist sale: %w", errors.New("ProvisionedThroughputExceededException")),
		fmt.Errorf("%w: unexpected end of JSON input", kiwify.ErrMalformedPayload),
	}
	for _, procErr := range cases {
		d.proc.err = procErr
		w := do(r, http.MethodPost, "/kiwify-webhook", strings.NewReader(`{`), nil)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
		if got := decode(t, w)["error"]; got != procErr.Error() {
			t.Fatalf("expected error %q, got %v", procErr.Error(), got)
		}
	}
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodGet, "/health", nil, nil)
	if w.Code != http.StatusOK || decode(t, w)["status"] != "ok" {
		t.Fatalf("unexpected health response: %d %s", w.Code, w.Body.String())
	}
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write([]byte(content))
	} else {
		_ = mw.WriteField("note", "no file")
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUpload(t *testing.T) {
	r, d := newTestRouter(t)

	body, ct := multipartBody(t, "file", "book.pdf", "%PDF-1.7")
	w := do(r, http.MethodPost, "/uploads", body, map[string]string{
		"Content-Type":  ct,
		"Authorization": "Bearer " + testAdminKey,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["message"] != "File uploaded successfully" || resp["url"] != "https://cdn.example.com/abc.pdf" {
		t.Fatalf("unexpected response: %v", resp)
	}
	if d.uploader.filename != "book.pdf" || d.uploader.body != "%PDF-1.7" {
		t.Fatalf("uploader got %q %q", d.uploader.filename, d.uploader.body)
	}
}

func TestUpload_MissingFile(t *testing.T) {
	r, _ := newTestRouter(t)

	body, ct := multipartBody(t, "", "", "")
	w := do(r, http.MethodPost, "/uploads", body, map[string]string{
		"Content-Type":  ct,
		"Authorization": "Bearer " + testAdminKey,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := decode(t, w)
	if resp["error"] != "No file uploaded" || resp["message"] != "File is missing" {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestUpload_AuthAndStorageErrors(t *testing.T) {
	r, d := newTestRouter(t)

	body, ct := multipartBody(t, "file", "book.pdf", "x")
	w := do(r, http.MethodPost, "/uploads", body, map[string]string{"Content-Type": ct})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w = do(r, http.MethodOptions, "/uploads", nil, nil)
	if w.Code != http.StatusOK || w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected preflight 200 with CORS, got %d", w.Code)
	}

	d.uploader.err = errors.New("bucket gone")
	body, ct = multipartBody(t, "file", "book.pdf", "x")
	w = do(r, http.MethodPost, "/uploads", body, map[string]string{
		"Content-Type":  ct,
		"Authorization": "Bearer " + testAdminKey,
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestProducts_CRUD(t *testing.T) {
	r, d := newTestRouter(t)

	payload := `{"title":"Dom Casmurro","author":"Machado de Assis","price":29.9,"kiwify_checkout_link":"https://pay.kiwify.com.br/abc123"}`

	w := do(r, http.MethodPost, "/products", strings.NewReader(payload), map[string]string{"Content-Type": "application/json"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	w = do(r, http.MethodPost, "/products", strings.NewReader(payload), adminHeaders)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Location") != "/products/p1" {
		t.Fatalf("unexpected location: %q", w.Header().Get("Location"))
	}
	if d.catalog.created[0].KiwifyCheckoutLink != "https://pay.kiwify.com.br/abc123" {
		t.Fatalf("unexpected created product: %+v", d.catalog.created[0])
	}

	w = do(r, http.MethodGet, "/products/p1", nil, nil)
	if w.Code != http.StatusOK || decode(t, w)["title"] != "Dom Casmurro" {
		t.Fatalf("unexpected get: %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodPut, "/products/p1", strings.NewReader(`{"file_url":"https://cdn.example.com/dom.pdf"}`), adminHeaders)
	if w.Code != http.StatusOK || decode(t, w)["file_url"] != "https://cdn.example.com/dom.pdf" {
		t.Fatalf("unexpected update: %d %s", w.Code, w.Body.String())
	}
	if u := d.catalog.updates[0]; u.Title != nil {
		t.Fatal("absent fields must stay nil in the update")
	}

	w = do(r, http.MethodGet, "/products", nil, nil)
	var list []products.Product
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("unexpected list: %s", w.Body.String())
	}

	w = do(r, http.MethodDelete, "/products/p1", nil, adminHeaders)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	w = do(r, http.MethodGet, "/products/p1", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", w.Code)
	}
}

func TestProducts_Validation(t *testing.T) {
	r, _ := newTestRouter(t)

	w := do(r, http.MethodPost, "/products", strings.NewReader(`{"price":-5}`), adminHeaders)
	if w.Code != http.StatusBadRequest || decode(t, w)["error"] != "validation_failed" {
		t.Fatalf("expected validation_failed, got %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodPost, "/products", strings.NewReader(`not json`), adminHeaders)
	if w.Code != http.StatusBadRequest || decode(t, w)["error"] != "invalid_request_body" {
		t.Fatalf("expected invalid_request_body, got %d %s", w.Code, w.Body.String())
	}

	w = do(r, http.MethodPut, "/products/missing", strings.NewReader(`{"title":"x"}`), adminHeaders)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSales_List(t *testing.T) {
	r, d := newTestRouter(t)
	d.sales.list = []sales.Sale{{TransactionID: "T2"}, {TransactionID: "T1"}}

	w := do(r, http.MethodGet, "/sales", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	w = do(r, http.MethodGet, "/sales", nil, map[string]string{"Authorization": testAdminKey})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without Bearer prefix, got %d", w.Code)
	}

	w = do(r, http.MethodGet, "/sales", nil, adminHeaders)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list []sales.Sale
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].TransactionID != "T2" {
		t.Fatalf("unexpected list: %+v", list)
	}

	d.sales.err = errors.New("scan failed")
	w = do(r, http.MethodGet, "/sales", nil, adminHeaders)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestRequireAdmin_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(HandlerConfig{Sales: &fakeSales{}, Logger: logrus.New()})

	w := do(r, http.MethodGet, "/sales", nil, map[string]string{"Authorization": "Bearer "})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 with no admin key configured, got %d", w.Code)
	}
}

func TestRegisterRoutes_WithoutLoggerDoesNotPanicOnErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	cfg := HandlerConfig{
		Webhook:     &fakeProcessor{err: errors.New("persist sale: boom")},
		Uploads:     &fakeUploader{err: errors.New("bucket gone")},
		AdminAPIKey: testAdminKey,
	}
	RegisterWebhookRoutes(r, cfg)
	RegisterUploadRoutes(r, cfg)

	w := do(r, http.MethodPost, "/kiwify-webhook", strings.NewReader(`{"order_id":"T1"}`), nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	body, ct := multipartBody(t, "file", "book.pdf", "x")
	w = do(r, http.MethodPost, "/uploads", body, map[string]string{
		"Content-Type":  ct,
		"Authorization": "Bearer " + testAdminKey,
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestWebhook_OversizedBody(t *testing.T) {
	r, d := newTestRouter(t)

	big := `{"order_id":"T1","pad":"` + strings.Repeat("a", maxWebhookBody) + `"}`
	w := do(r, http.MethodPost, "/kiwify-webhook", strings.NewReader(big), nil)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
	if d.proc.calls != 0 {
		t.Fatal("oversized body must not be processed")
	}
}
