package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"filescan-service/internal/config"
	"filescan-service/internal/entity"
	"filescan-service/internal/kv"
	"filescan-service/internal/model"
	"filescan-service/internal/scan"
)

type fixedRand struct {
	float float64
	n     int
}

func (f fixedRand) Float64() float64 { return f.float }
func (f fixedRand) Intn(n int) int   { return f.n % n }

type fixture struct {
	router *gin.Engine
	scans  *entity.Collection[model.ScanRecord]
}

// newFixture wires the full API over a memory store. scanCfg controls how
// fast the lifecycle driver fires; slowScanCfg keeps records in processing
// for the whole test.
func newFixture(t *testing.T, scanCfg config.ScanConfig, rnd scan.Rand) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := kv.NewMemoryStore()
	scans := entity.NewCollection(store, "scans", func(r model.ScanRecord) string { return r.ID })
	users := entity.NewCollection(store, "users", func(r model.User) string { return r.ID })
	chats := entity.NewCollection(store, "chats", func(r model.Chat) string { return r.ID })
	messages := entity.NewCollection(store, "messages", func(r model.ChatMessage) string { return r.ID })

	driver := scan.NewDriverWithRand(scans, scanCfg, rnd)
	ctx, cancel := context.WithCancel(context.Background())
	driver.Start(ctx)
	t.Cleanup(cancel)

	handler := NewHandler(scans, users, chats, messages, driver, nil, config.Default())

	router := gin.New()
	SetupRoutes(router, handler)

	return &fixture{router: router, scans: scans}
}

func slowScanCfg() config.ScanConfig {
	return config.ScanConfig{MinDelay: time.Hour, MaxDelay: time.Hour, Workers: 1, QueueSize: 8}
}

func fastScanCfg() config.ScanConfig {
	return config.ScanConfig{MinDelay: 0, MaxDelay: 0, Workers: 1, QueueSize: 8}
}

func (f *fixture) request(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) model.Response {
	t.Helper()
	var resp struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not an envelope: %v (%s)", err, rec.Body.String())
	}
	if out != nil && resp.Data != nil {
		if err := json.Unmarshal(resp.Data, out); err != nil {
			t.Fatalf("failed to decode data: %v", err)
		}
	}
	return model.Response{Success: resp.Success, Error: resp.Error}
}

func multipartUpload(t *testing.T, content []byte, fields map[string]string) ([]byte, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "a.txt")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	part.Write(content)
	for key, value := range fields {
		writer.WriteField(key, value)
	}
	writer.Close()
	return buf.Bytes(), writer.FormDataContentType()
}

func TestCreateScan_ReturnsProcessingImmediately(t *testing.T) {
	f := newFixture(t, slowScanCfg(), fixedRand{float: 0.3})

	body, contentType := multipartUpload(t, []byte("0123456789"), map[string]string{"title": "quarterly report"})
	rec := f.request(t, http.MethodPost, "/api/scan", body, contentType)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var accepted model.ScanAccepted
	resp := decode(t, rec, &accepted)
	if !resp.Success {
		t.Fatalf("success = false: %s", resp.Error)
	}
	if accepted.Status != model.ScanStatusProcessing {
		t.Errorf("status = %s, expected processing", accepted.Status)
	}
	if accepted.ID == "" {
		t.Fatal("no scan id returned")
	}

	rec = f.request(t, http.MethodGet, "/api/scans/"+accepted.ID, nil, "")
	var record model.ScanRecord
	decode(t, rec, &record)
	if record.Status != model.ScanStatusProcessing {
		t.Errorf("fetched status = %s, expected processing", record.Status)
	}
	if record.Summary != nil {
		t.Errorf("summary present while processing: %+v", record.Summary)
	}
	if record.Filename != "a.txt" || record.Size != 10 {
		t.Errorf("file metadata = (%s, %d), expected (a.txt, 10)", record.Filename, record.Size)
	}
	if record.Fields["title"] != "quarterly report" {
		t.Errorf("fields = %v, title form field lost", record.Fields)
	}
}

func TestCreateScan_MissingFile(t *testing.T) {
	f := newFixture(t, slowScanCfg(), fixedRand{float: 0.3})

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	writer.WriteField("title", "no file attached")
	writer.Close()

	rec := f.request(t, http.MethodPost, "/api/scan", buf.Bytes(), writer.FormDataContentType())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, expected 400", rec.Code)
	}
	resp := decode(t, rec, nil)
	if resp.Success {
		t.Error("success = true on validation failure")
	}
	if resp.Error != "File is required" {
		t.Errorf("error = %q", resp.Error)
	}
}

func TestScan_EndToEnd(t *testing.T) {
	f := newFixture(t, fastScanCfg(), fixedRand{float: 0.3, n: 55})

	body, contentType := multipartUpload(t, []byte("0123456789"), nil)
	rec := f.request(t, http.MethodPost, "/api/scan", body, contentType)
	var accepted model.ScanAccepted
	decode(t, rec, &accepted)

	var final model.ScanRecord
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec := f.request(t, http.MethodGet, "/api/scans/"+accepted.ID, nil, "")
		decode(t, rec, &final)
		if final.Status.Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if final.Status != model.ScanStatusCompleted {
		t.Fatalf("status = %s, expected completed", final.Status)
	}
	if final.Summary == nil || final.Summary.Verdict != model.VerdictClean {
		t.Fatalf("summary = %+v, expected clean verdict", final.Summary)
	}
	if final.Summary.Score != 55 {
		t.Errorf("score = %d, expected 55", final.Summary.Score)
	}
}

func TestRetryScan(t *testing.T) {
	f := newFixture(t, slowScanCfg(), fixedRand{float: 0.3})

	f.scans.Create(context.Background(), model.ScanRecord{
		ID:       "s-failed",
		Filename: "broken.bin",
		Status:   model.ScanStatusError,
		TS:       time.Now().UnixMilli(),
	})

	rec := f.request(t, http.MethodPost, "/api/scans/s-failed/retry", nil, "")
	var accepted model.ScanAccepted
	resp := decode(t, rec, &accepted)
	if !resp.Success || accepted.Status != model.ScanStatusProcessing {
		t.Fatalf("retry = %+v (%s)", accepted, resp.Error)
	}

	rec = f.request(t, http.MethodGet, "/api/scans/s-failed", nil, "")
	var record model.ScanRecord
	decode(t, rec, &record)
	if record.Status != model.ScanStatusProcessing {
		t.Errorf("status after retry = %s, expected processing", record.Status)
	}
	if record.Summary != nil {
		t.Errorf("summary survived retry: %+v", record.Summary)
	}
	if record.Filename != "broken.bin" {
		t.Errorf("filename = %q, retry must not touch file metadata", record.Filename)
	}
}

func TestRetryScan_ClearsTerminalSummary(t *testing.T) {
	f := newFixture(t, slowScanCfg(), fixedRand{float: 0.3})

	f.scans.Create(context.Background(), model.ScanRecord{
		ID:       "s-flagged",
		Filename: "odd.exe",
		Status:   model.ScanStatusFlagged,
		Summary: &model.ScanSummary{
			Verdict: model.VerdictSuspicious,
			Score:   91,
			Reasons: []string{"Contains suspicious patterns"},
		},
		TS: time.Now().UnixMilli(),
	})

	f.request(t, http.MethodPost, "/api/scans/s-flagged/retry", nil, "")

	rec := f.request(t, http.MethodGet, "/api/scans/s-flagged", nil, "")
	var record model.ScanRecord
	decode(t, rec, &record)
	if record.Status != model.ScanStatusProcessing || record.Summary != nil {
		t.Errorf("after retry: status=%s summary=%+v", record.Status, record.Summary)
	}
}

func TestRetryScan_UnknownID(t *testing.T) {
	f := newFixture(t, slowScanCfg(), fixedRand{float: 0.3})

	rec := f.request(t, http.MethodPost, "/api/scans/ghost/retry", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, expected 404", rec.Code)
	}
	resp := decode(t, rec, nil)
	if resp.Success || resp.Error != "Scan not found" {
		t.Errorf("response = %+v", resp)
	}
}

func TestDeleteScan(t *testing.T) {
	f := newFixture(t, slowScanCfg(), fixedRand{float: 0.3})

	f.scans.Create(context.Background(), model.ScanRecord{
		ID: "s-del", Filename: "x", Status: model.ScanStatusProcessing, TS: 1,
	})

	rec := f.request(t, http.MethodDelete, "/api/scans/s-del", nil, "")
	var result model.DeleteResult
	decode(t, rec, &result)
	if !result.Deleted {
		t.Error("deleted = false for an existing scan")
	}

	if rec := f.request(t, http.MethodGet, "/api/scans/s-del", nil, ""); rec.Code != http.StatusNotFound {
		t.Errorf("GET after delete = %d, expected 404", rec.Code)
	}

	rec = f.request(t, http.MethodDelete, "/api/scans/s-del", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat delete status = %d, expected 200", rec.Code)
	}
	decode(t, rec, &result)
	if result.Deleted {
		t.Error("deleted = true for a missing scan")
	}
}

func TestListScans_SeedsOnFirstCall(t *testing.T) {
	f := newFixture(t, slowScanCfg(), fixedRand{float: 0.3})

	rec := f.request(t, http.MethodGet, "/api/scans", nil, "")
	var page entity.Page[model.ScanRecord]
	resp := decode(t, rec, &page)
	if !resp.Success {
		t.Fatalf("list failed: %s", resp.Error)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "s1" {
		t.Fatalf("seeded items = %+v, expected the demo scan", page.Items)
	}
	if page.Items[0].Status != model.ScanStatusCompleted {
		t.Errorf("seed status = %s", page.Items[0].Status)
	}
}

func TestListScans_SortsByTimestampDescending(t *testing.T) {
	f := newFixture(t, slowScanCfg(), fixedRand{float: 0.3})

	for i := 0; i < 3; i++ {
		f.scans.Create(context.Background(), model.ScanRecord{
			ID: fmt.Sprintf("s%d", i), Filename: "x", Status: model.ScanStatusProcessing, TS: int64(100 + i),
		})
	}

	rec := f.request(t, http.MethodGet, "/api/scans?limit=10", nil, "")
	var page entity.Page[model.ScanRecord]
	decode(t, rec, &page)
	if len(page.Items) != 3 {
		t.Fatalf("items = %d, expected 3", len(page.Items))
	}
	for i := 1; i < len(page.Items); i++ {
		if page.Items[i-1].TS < page.Items[i].TS {
			t.Errorf("items not sorted by ts descending: %d before %d", page.Items[i-1].TS, page.Items[i].TS)
		}
	}
}

func TestListScans_PaginationRoundTrip(t *testing.T) {
	f := newFixture(t, slowScanCfg(), fixedRand{float: 0.3})

	const total = 25
	for i := 0; i < total; i++ {
		f.scans.Create(context.Background(), model.ScanRecord{
			ID: fmt.Sprintf("s%02d", i), Filename: "x", Status: model.ScanStatusProcessing, TS: int64(i),
		})
	}

	seen := make(map[string]bool)
	cursor := ""
	for {
		path := "/api/scans?limit=10"
		if cursor != "" {
			path += "&cursor=" + cursor
		}
		rec := f.request(t, http.MethodGet, path, nil, "")
		var page entity.Page[model.ScanRecord]
		decode(t, rec, &page)
		for _, item := range page.Items {
			if seen[item.ID] {
				t.Errorf("id %s returned twice", item.ID)
			}
			seen[item.ID] = true
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	if len(seen) != total {
		t.Errorf("enumerated %d scans, expected %d", len(seen), total)
	}
}

func TestUserRoutes(t *testing.T) {
	f := newFixture(t, slowScanCfg(), fixedRand{float: 0.3})

	rec := f.request(t, http.MethodGet, "/api/users", nil, "")
	var page entity.Page[model.User]
	decode(t, rec, &page)
	if len(page.Items) != 2 {
		t.Fatalf("seeded users = %d, expected 2", len(page.Items))
	}

	rec = f.request(t, http.MethodPost, "/api/users", []byte(`{"name":"  "}`), "application/json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("blank name status = %d, expected 400", rec.Code)
	}

	rec = f.request(t, http.MethodPost, "/api/users", []byte(`{"name":"Carol"}`), "application/json")
	var created model.User
	decode(t, rec, &created)
	if created.Name != "Carol" || created.ID == "" {
		t.Errorf("created user = %+v", created)
	}

	rec = f.request(t, http.MethodPost, "/api/users/deleteMany",
		[]byte(`{"ids":["u1","u2","ghost"]}`), "application/json")
	var result model.DeleteManyResult
	decode(t, rec, &result)
	if result.DeletedCount != 2 {
		t.Errorf("deletedCount = %d, expected 2", result.DeletedCount)
	}
}

func TestChatAndMessageRoutes(t *testing.T) {
	f := newFixture(t, slowScanCfg(), fixedRand{float: 0.3})

	rec := f.request(t, http.MethodGet, "/api/chats", nil, "")
	var chats entity.Page[model.Chat]
	decode(t, rec, &chats)
	if len(chats.Items) != 1 || chats.Items[0].ID != "c1" {
		t.Fatalf("seeded chats = %+v", chats.Items)
	}

	rec = f.request(t, http.MethodGet, "/api/chats/c1/messages", nil, "")
	var messages []model.ChatMessage
	decode(t, rec, &messages)
	if len(messages) != 1 || messages[0].Text != "Hello" {
		t.Fatalf("seeded messages = %+v", messages)
	}

	rec = f.request(t, http.MethodPost, "/api/chats/c1/messages",
		[]byte(`{"userId":"u1","text":"hi there"}`), "application/json")
	var sent model.ChatMessage
	resp := decode(t, rec, &sent)
	if !resp.Success || sent.ChatID != "c1" || sent.Text != "hi there" {
		t.Errorf("sent message = %+v (%s)", sent, resp.Error)
	}

	rec = f.request(t, http.MethodGet, "/api/chats/c1/messages", nil, "")
	decode(t, rec, &messages)
	if len(messages) != 2 {
		t.Errorf("messages after send = %d, expected 2", len(messages))
	}

	if rec := f.request(t, http.MethodPost, "/api/chats/ghost/messages",
		[]byte(`{"userId":"u1","text":"void"}`), "application/json"); rec.Code != http.StatusNotFound {
		t.Errorf("message to missing chat status = %d, expected 404", rec.Code)
	}

	if rec := f.request(t, http.MethodPost, "/api/chats/c1/messages",
		[]byte(`{"userId":"u1","text":"  "}`), "application/json"); rec.Code != http.StatusBadRequest {
		t.Errorf("blank text status = %d, expected 400", rec.Code)
	}
}
