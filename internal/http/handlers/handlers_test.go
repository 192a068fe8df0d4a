package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"

	"github.com/tbourn/go-messenger-bot/internal/domain"
	"github.com/tbourn/go-messenger-bot/internal/messenger"
	"github.com/tbourn/go-messenger-bot/internal/replies"
	"github.com/tbourn/go-messenger-bot/internal/services"
)

// ---- stubs ----

type stubLeads struct {
	items   []domain.Lead
	total   int64
	latest  *time.Time
	listErr error

	gotSender        string
	gotPage, gotSize int
}

func (s *stubLeads) ListPage(_ context.Context, senderID string, page, pageSize int) ([]domain.Lead, int64, error) {
	s.gotSender, s.gotPage, s.gotSize = senderID, page, pageSize
	return s.items, s.total, s.listErr
}

func (s *stubLeads) Stats(_ context.Context, _ string) (int64, *time.Time, error) {
	return s.total, s.latest, nil
}

type stubConvs struct {
	convs    []domain.Conversation
	msgs     []domain.Message
	total    int64
	latest   *time.Time
	notFound bool
}

func (s *stubConvs) ListPage(_ context.Context, _, _ int) ([]domain.Conversation, int64, error) {
	return s.convs, int64(len(s.convs)), nil
}

func (s *stubConvs) ListMessagesPage(_ context.Context, _ string, _, _ int) ([]domain.Message, int64, error) {
	if s.notFound {
		return nil, 0, services.ErrConversationNotFound
	}
	return s.msgs, s.total, nil
}

func (s *stubConvs) MessagesStats(_ context.Context, _ string) (int64, *time.Time, error) {
	if s.notFound {
		return 0, nil, services.ErrConversationNotFound
	}
	return s.total, s.latest, nil
}

type stubResolver struct {
	tag   language.Tag
	reply services.Reply
	err   error
}

func (s stubResolver) DryRun(_ context.Context, _ string) (language.Tag, services.Reply, error) {
	return s.tag, s.reply, s.err
}

type stubSubmitter struct {
	mu     sync.Mutex
	pages  []string
	events []messenger.Messaging
}

func (s *stubSubmitter) Submit(_ context.Context, pageID string, m messenger.Messaging) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, pageID)
	s.events = append(s.events, m)
}

// ---- helpers ----

func adminRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/leads", h.ListLeads)
	r.GET("/conversations", h.ListConversations)
	r.GET("/conversations/:sender_id/messages", h.ListConversationMessages)
	r.GET("/replies", h.GetReplies)
	r.POST("/replies/resolve", h.ResolveReply)
	return r
}

func do(r http.Handler, method, target, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("decode error body %q: %v", w.Body.String(), err)
	}
	return er
}

// ---- leads ----

func TestListLeads_PaginationAndETag(t *testing.T) {
	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	leads := &stubLeads{
		items:  []domain.Lead{{ID: "l1", SenderID: "u1", MessageText: "AC repair?"}},
		total:  21,
		latest: &ts,
	}
	r := adminRouter(New(leads, &stubConvs{}, stubResolver{}, replies.Default()))

	w := do(r, http.MethodGet, "/leads?sender_id=u1&page=2&page_size=20", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if leads.gotSender != "u1" || leads.gotPage != 2 || leads.gotSize != 20 {
		t.Fatalf("service args sender=%q page=%d size=%d", leads.gotSender, leads.gotPage, leads.gotSize)
	}

	var resp ListLeadsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Leads) != 1 || resp.Pagination.Total != 21 || resp.Pagination.TotalPages != 2 || resp.Pagination.HasNext {
		t.Fatalf("unexpected response: %+v", resp)
	}

	etag := w.Header().Get("ETag")
	if !strings.HasPrefix(etag, `W/"leads:u1:2:20:21:`) {
		t.Fatalf("etag=%q", etag)
	}

	w = do(r, http.MethodGet, "/leads?sender_id=u1&page=2&page_size=20", "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("want 304, got %d", w.Code)
	}

	// a different page must not share the tag
	w = do(r, http.MethodGet, "/leads?sender_id=u1&page=1&page_size=20", "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusOK {
		t.Fatalf("want 200 for other page, got %d", w.Code)
	}
}

func TestListLeads_ListError500(t *testing.T) {
	leads := &stubLeads{listErr: errors.New("db down")}
	r := adminRouter(New(leads, &stubConvs{}, stubResolver{}, replies.Default()))

	w := do(r, http.MethodGet, "/leads", "", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", w.Code)
	}
	if er := decodeError(t, w); er.Code != ErrCodeListFailed {
		t.Fatalf("code=%q", er.Code)
	}
}

// ---- conversations ----

func TestListConversations(t *testing.T) {
	convs := &stubConvs{convs: []domain.Conversation{{ID: "c1", SenderID: "u1"}, {ID: "c2", SenderID: "u2"}}}
	r := adminRouter(New(&stubLeads{}, convs, stubResolver{}, replies.Default()))

	w := do(r, http.MethodGet, "/conversations?page=0&page_size=1000", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp ListConversationsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Conversations) != 2 || resp.Pagination.Page != 1 || resp.Pagination.PageSize != 100 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestListConversationMessages(t *testing.T) {
	ts := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	convs := &stubConvs{
		msgs: []domain.Message{
			{ID: "m1", Role: domain.RoleUser, Content: "hi"},
			{ID: "m2", Role: domain.RoleAssistant, Content: "hello"},
		},
		total:  2,
		latest: &ts,
	}
	r := adminRouter(New(&stubLeads{}, convs, stubResolver{}, replies.Default()))

	w := do(r, http.MethodGet, "/conversations/u1/messages", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp ListMessagesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SenderID != "u1" || len(resp.Messages) != 2 || resp.Messages[0].Role != domain.RoleUser {
		t.Fatalf("unexpected response: %+v", resp)
	}

	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatal("missing ETag")
	}
	w = do(r, http.MethodGet, "/conversations/u1/messages", "", map[string]string{"If-None-Match": etag})
	if w.Code != http.StatusNotModified {
		t.Fatalf("want 304, got %d", w.Code)
	}
}

func TestListConversationMessages_NotFound(t *testing.T) {
	r := adminRouter(New(&stubLeads{}, &stubConvs{notFound: true}, stubResolver{}, replies.Default()))

	w := do(r, http.MethodGet, "/conversations/ghost/messages", "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status=%d", w.Code)
	}
	if er := decodeError(t, w); er.Code != ErrCodeNotFound {
		t.Fatalf("code=%q", er.Code)
	}
}

// ---- replies ----

func TestGetReplies(t *testing.T) {
	table := replies.Default()
	r := adminRouter(New(&stubLeads{}, &stubConvs{}, stubResolver{}, table))

	w := do(r, http.MethodGet, "/replies", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var resp RepliesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Entries) != table.Len() || resp.Greeting.BN == "" || resp.Fallback.EN == "" {
		t.Fatalf("unexpected table: %+v", resp)
	}
}

func TestResolveReply(t *testing.T) {
	res := stubResolver{
		tag:   language.English,
		reply: services.Reply{Text: "We fix leaks.", Tier: domain.SourceKeyword},
	}
	r := adminRouter(New(&stubLeads{}, &stubConvs{}, res, replies.Default()))

	w := do(r, http.MethodPost, "/replies/resolve", `{"text":"my pipe is leaking"}`, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp ResolveResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Language != "en" || resp.Tier != domain.SourceKeyword || resp.Reply != "We fix leaks." {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestResolveReply_Errors(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		err      error
		wantCode string
	}{
		{"malformed", `{"text":`, nil, ErrCodeBadRequest},
		{"missing text", `{}`, nil, ErrCodeBadRequest},
		{"blank text", `{"text":"   "}`, services.ErrEmptyText, ErrCodeBadRequest},
		{"too long", `{"text":"xxxx"}`, services.ErrTextTooLong, ErrCodeTextTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := adminRouter(New(&stubLeads{}, &stubConvs{}, stubResolver{err: tc.err}, replies.Default()))
			w := do(r, http.MethodPost, "/replies/resolve", tc.body, nil)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status=%d", w.Code)
			}
			if er := decodeError(t, w); er.Code != tc.wantCode {
				t.Fatalf("code=%q want %q", er.Code, tc.wantCode)
			}
		})
	}
}

// ---- webhook ----

func webhookRouter(h *WebhookHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/webhook", h.Verify)
	r.POST("/webhook", h.Receive)
	return r
}

func TestWebhookVerify(t *testing.T) {
	r := webhookRouter(NewWebhookHandler("s3cret", &stubSubmitter{}))

	cases := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{"ok", "hub.mode=subscribe&hub.verify_token=s3cret&hub.challenge=12345", http.StatusOK, "12345"},
		{"wrong token", "hub.mode=subscribe&hub.verify_token=nope&hub.challenge=12345", http.StatusForbidden, "Verification failed"},
		{"wrong mode", "hub.mode=unsubscribe&hub.verify_token=s3cret&hub.challenge=12345", http.StatusForbidden, "Verification failed"},
		{"missing", "", http.StatusForbidden, "Verification failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, http.MethodGet, "/webhook?"+tc.query, "", nil)
			if w.Code != tc.status || w.Body.String() != tc.body {
				t.Fatalf("got %d %q, want %d %q", w.Code, w.Body.String(), tc.status, tc.body)
			}
		})
	}
}

func TestWebhookVerify_EmptyConfiguredTokenRejects(t *testing.T) {
	r := webhookRouter(NewWebhookHandler("", &stubSubmitter{}))

	w := do(r, http.MethodGet, "/webhook?hub.mode=subscribe&hub.verify_token=&hub.challenge=1", "", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestWebhookReceive_SubmitsEveryEvent(t *testing.T) {
	sub := &stubSubmitter{}
	r := webhookRouter(NewWebhookHandler("t", sub))

	body := `{"object":"page","entry":[
		{"id":"PAGE","time":1,"messaging":[
			{"sender":{"id":"u1"},"recipient":{"id":"PAGE"},"message":{"mid":"m1","text":"hi"}},
			{"sender":{"id":"u2"},"recipient":{"id":"PAGE"},"postback":{"title":"Get Started","payload":"GET_STARTED"}}
		]},
		{"id":"PAGE","time":2,"messaging":[
			{"sender":{"id":"u1"},"recipient":{"id":"PAGE"},"read":{"watermark":5}}
		]}
	]}`
	w := do(r, http.MethodPost, "/webhook", body, nil)
	if w.Code != http.StatusOK || w.Body.String() != "EVENT_RECEIVED" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
	if len(sub.events) != 3 {
		t.Fatalf("submitted %d events, want 3", len(sub.events))
	}
	if sub.pages[0] != "PAGE" || sub.events[0].Message == nil || sub.events[0].Message.MID != "m1" {
		t.Fatalf("first event = %+v on %q", sub.events[0], sub.pages[0])
	}
	if sub.events[1].Postback == nil || sub.events[2].Read == nil {
		t.Fatalf("event kinds not preserved: %+v", sub.events)
	}
}

func TestWebhookReceive_Rejects(t *testing.T) {
	cases := []struct {
		name     string
		body     string
		status   int
		wantCode string
	}{
		{"malformed", `{"object":`, http.StatusBadRequest, ErrCodeBadRequest},
		{"not a page", `{"object":"instagram","entry":[]}`, http.StatusNotFound, ErrCodeUnsupportedObject},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sub := &stubSubmitter{}
			r := webhookRouter(NewWebhookHandler("t", sub))
			w := do(r, http.MethodPost, "/webhook", tc.body, nil)
			if w.Code != tc.status {
				t.Fatalf("status=%d", w.Code)
			}
			if er := decodeError(t, w); er.Code != tc.wantCode {
				t.Fatalf("code=%q", er.Code)
			}
			if len(sub.events) != 0 {
				t.Fatalf("submitted %d events", len(sub.events))
			}
		})
	}
}
