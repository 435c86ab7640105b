package tracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/thwithaphisek/student-behavior-api/pkg/errors"
)

type graphqlCall struct {
	Query     string
	Variables map[string]interface{}
}

// fakeTracker scripts both API surfaces: REST issue creation and the
// GraphQL queries/mutations the synchronizer issues.
type fakeTracker struct {
	t *testing.T

	fieldsData string
	itemsData  string
	failAdd    bool
	failFields bool

	mu           sync.Mutex
	issueCreated int
	calls        []graphqlCall
}

const defaultFieldsData = `{"node": {"fields": {"nodes": [
	{"id": "f-status", "name": "Status", "dataType": "SINGLE_SELECT", "options": [
		{"id": "opt-pending", "name": "🕐 รออนุมัติ"},
		{"id": "opt-review", "name": "🔍 กำลังตรวจสอบ"},
		{"id": "opt-approved", "name": "✅ อนุมัติแล้ว"},
		{"id": "opt-rejected", "name": "❌ ไม่อนุมัติ"}
	]},
	{"id": "f-score", "name": "คะแนน", "dataType": "NUMBER"},
	{"id": "f-class", "name": "ห้องเรียน", "dataType": "SINGLE_SELECT", "options": [
		{"id": "opt-42", "name": "4/2"}
	]},
	{"id": "f-teacher", "name": "ครูผู้ลงทะเบียน", "dataType": "TEXT"},
	{"id": "f-date", "name": "วันที่ส่ง", "dataType": "DATE"}
]}}}`

func (f *fakeTracker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/repos/") {
		f.mu.Lock()
		f.issueCreated++
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 99, "number": 7, "node_id": "I_abc", "html_url": "https://example.com/issues/7"}`))
		return
	}

	var req struct {
		Query     string                 `json:"query"`
		Variables map[string]interface{} `json:"variables"`
	}
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))

	f.mu.Lock()
	f.calls = append(f.calls, graphqlCall{Query: req.Query, Variables: req.Variables})
	f.mu.Unlock()

	switch {
	case strings.Contains(req.Query, "addProjectV2ItemById"):
		if f.failAdd {
			_, _ = w.Write([]byte(`{"data": null, "errors": [{"message": "project is archived"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data": {"addProjectV2ItemById": {"item": {"id": "PVTI_item"}}}}`))
	case strings.Contains(req.Query, "updateProjectV2ItemFieldValue"):
		_, _ = w.Write([]byte(`{"data": {"updateProjectV2ItemFieldValue": {"projectV2Item": {"id": "PVTI_item"}}}}`))
	case strings.Contains(req.Query, "items(first"):
		fmt.Fprintf(w, `{"data": %s}`, f.itemsData)
	case strings.Contains(req.Query, "fields(first"):
		if f.failFields {
			_, _ = w.Write([]byte(`{"data": null, "errors": [{"message": "fields unavailable"}]}`))
			return
		}
		data := f.fieldsData
		if data == "" {
			data = defaultFieldsData
		}
		fmt.Fprintf(w, `{"data": %s}`, data)
	default:
		f.t.Fatalf("unexpected graphql query: %s", req.Query)
	}
}

func (f *fakeTracker) updateCalls() []graphqlCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var updates []graphqlCall
	for _, call := range f.calls {
		if strings.Contains(call.Query, "updateProjectV2ItemFieldValue") {
			updates = append(updates, call)
		}
	}
	return updates
}

func newTestSynchronizer(t *testing.T, fake *fakeTracker) (*Synchronizer, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client := newTestClient(server)
	registry := NewRegistry(client)
	return NewSynchronizer(client, registry, "โรงเรียนตัวอย่าง", zap.NewNop()), server
}

func TestSynchronizerCreate(t *testing.T) {
	fake := &fakeTracker{t: t}
	s, _ := newTestSynchronizer(t, fake)

	created, err := s.Create(context.Background(), sampleRecord())
	require.NoError(t, err)

	require.Equal(t, "PVTI_item", created.TrackerItemID)
	require.Equal(t, "I_abc", created.DocumentID)
	require.Equal(t, 7, created.DocumentNumber)
	require.Equal(t, "https://example.com/issues/7", created.URL)
	require.Equal(t, "รออนุมัติ", created.Status)
	require.NotEmpty(t, created.SubmittedDate)
	require.Equal(t, 1, fake.issueCreated)

	// status, score, classroom, teacher, date
	updates := fake.updateCalls()
	require.Len(t, updates, 5)
}

func TestSynchronizerCreateNumberPayload(t *testing.T) {
	fake := &fakeTracker{t: t}
	s, _ := newTestSynchronizer(t, fake)

	_, err := s.Create(context.Background(), sampleRecord())
	require.NoError(t, err)

	var scoreUpdate *graphqlCall
	for _, call := range fake.updateCalls() {
		if call.Variables["fieldId"] == "f-score" {
			call := call
			scoreUpdate = &call
			break
		}
	}
	require.NotNil(t, scoreUpdate, "score field update not issued")

	// JSON numbers decode as float64; the payload must be numeric, not a
	// string or an option id.
	require.Equal(t, float64(5), scoreUpdate.Variables["number"])
	require.Contains(t, scoreUpdate.Query, "Float!")
}

func TestSynchronizerCreateAttachFailure(t *testing.T) {
	fake := &fakeTracker{t: t, failAdd: true}
	s, _ := newTestSynchronizer(t, fake)

	_, err := s.Create(context.Background(), sampleRecord())
	require.Error(t, err)
	require.Contains(t, err.Error(), "issue #7")

	// The orphaned issue exists; no field updates were attempted.
	require.Equal(t, 1, fake.issueCreated)
	require.Empty(t, fake.updateCalls())
}

func TestSynchronizerCreateRegistryFailureAbortsFieldStep(t *testing.T) {
	fake := &fakeTracker{t: t, failFields: true}
	s, _ := newTestSynchronizer(t, fake)

	_, err := s.Create(context.Background(), sampleRecord())
	require.Error(t, err)
	require.Empty(t, fake.updateCalls())
}

func TestSynchronizerCreateSkipsUnknownClassroomOption(t *testing.T) {
	fake := &fakeTracker{t: t}
	s, _ := newTestSynchronizer(t, fake)

	rec := sampleRecord()
	rec.Classroom = "9/9"
	_, err := s.Create(context.Background(), rec)
	require.NoError(t, err)

	for _, call := range fake.updateCalls() {
		require.NotEqual(t, "f-class", call.Variables["fieldId"])
	}
}

func itemNode(i int, title, body string) string {
	return fmt.Sprintf(`{
		"id": "PVTI_%d",
		"content": {
			"id": "I_%d", "number": %d, "title": %q, "body": %q,
			"state": "OPEN",
			"createdAt": "2026-08-01T09:00:00Z", "updatedAt": "2026-08-02T09:00:00Z",
			"url": "https://example.com/issues/%d"
		},
		"fieldValues": {"nodes": [
			{"field": {"name": "Status"}, "name": "🕐 รออนุมัติ"},
			{"field": {"name": "คะแนน"}, "number": 4},
			{"field": {"name": "ครูผู้ลงทะเบียน"}, "text": "ครูสมหญิง"},
			{"field": {"name": "วันที่ส่ง"}, "date": "2026-08-01"}
		]}
	}`, i, i, i, title, body, i)
}

func itemsPayload(nodes ...string) string {
	return fmt.Sprintf(`{"node": {"items": {"nodes": [%s]}}}`, strings.Join(nodes, ","))
}

func TestSynchronizerList(t *testing.T) {
	encoded := EncodeIssue(sampleRecord(), "โรงเรียนตัวอย่าง", mustTime())
	fake := &fakeTracker{t: t, itemsData: itemsPayload(itemNode(1, encoded.Title, encoded.Body))}
	s, _ := newTestSynchronizer(t, fake)

	records, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	require.Equal(t, "PVTI_1", rec.TrackerItemID)
	require.Equal(t, 1, rec.DocumentNumber)
	require.Equal(t, "🕐 รออนุมัติ", rec.Status)
	require.Equal(t, float64(4), rec.Score)
	require.Equal(t, "ครูสมหญิง", rec.TeacherName)
	require.Equal(t, "2026-08-01", rec.SubmittedDate)

	// decoded from title/body
	require.Equal(t, "สมชาย ใจดี", rec.FullName)
	require.Equal(t, "123456", rec.StudentID)
	require.Equal(t, "4/2", rec.Classroom)
	require.Equal(t, "14", rec.StudentNumber)
	require.Equal(t, "ช่วยครูถือของขึ้นอาคารเรียน", rec.GoodBehavior)
}

func TestSynchronizerListCapsPage(t *testing.T) {
	nodes := make([]string, 0, maxProjectItems+10)
	for i := 0; i < maxProjectItems+10; i++ {
		nodes = append(nodes, itemNode(i, "title", "body"))
	}
	fake := &fakeTracker{t: t, itemsData: itemsPayload(nodes...)}
	s, _ := newTestSynchronizer(t, fake)

	records, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, maxProjectItems)
}

func TestSynchronizerUpdateStatus(t *testing.T) {
	fake := &fakeTracker{t: t}
	s, _ := newTestSynchronizer(t, fake)

	err := s.UpdateStatus(context.Background(), "PVTI_item", "อนุมัติแล้ว")
	require.NoError(t, err)

	updates := fake.updateCalls()
	require.Len(t, updates, 1)
	require.Equal(t, "opt-approved", updates[0].Variables["optionId"])
	require.Equal(t, "f-status", updates[0].Variables["fieldId"])
}

func TestSynchronizerUpdateStatusOptionNotFound(t *testing.T) {
	fake := &fakeTracker{t: t}
	s, _ := newTestSynchronizer(t, fake)

	err := s.UpdateStatus(context.Background(), "PVTI_item", "ไม่มีสถานะนี้")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrStatusOptionNotFound.Code, appErrors.FromError(err).Code)
	require.Empty(t, fake.updateCalls())
}

func mustTime() time.Time {
	return time.Date(2026, time.September, 1, 10, 0, 0, 0, time.UTC)
}
