package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paysuit/internal/models"
	"paysuit/internal/payments"
	"paysuit/internal/push"
)

func newTestHandler() (*Handler, *fakeStore, *fakeFeed, *fakeNotifier) {
	st := newFakeStore()
	feed := newFakeFeed()
	notifier := &fakeNotifier{publicKey: "test-public-key"}
	h := NewHandler(st, feed, notifier, &payments.SandboxGateway{})
	return h, st, feed, notifier
}

func tenantUser() models.User {
	return models.User{ID: 7, Name: "Jane Tenant", Email: "jane@example.com", Roles: []models.UserRole{models.RoleTenant}}
}

func adminUser() models.User {
	return models.User{ID: 1, Name: "Root", Email: "admin@example.com", Roles: []models.UserRole{models.RoleAdmin}}
}

func TestVAPIDKeyHandler(t *testing.T) {
	h, _, _, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/push/vapid-key", nil)
	rec := httptest.NewRecorder()
	h.VAPIDKeyHandler(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "test-public-key", resp["publicKey"])
}

func TestSubscribeRequiresSession(t *testing.T) {
	h, st, _, _ := newTestHandler()

	body := `{"endpoint":"https://push.example/abc","keys":{"p256dh":"p","auth":"a"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/push/subscribe", strings.NewReader(body))
	rec := httptest.NewRecorder()
	AuthMiddleware(h.SubscribeHandler)(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, st.subscriptions)
}

func TestSubscribeValidation(t *testing.T) {
	h, st, _, _ := newTestHandler()

	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing endpoint", `{"keys":{"p256dh":"p","auth":"a"}}`, models.ErrMissingEndpoint.Error()},
		{"missing p256dh", `{"endpoint":"https://push.example/abc","keys":{"auth":"a"}}`, models.ErrMissingKeys.Error()},
		{"missing auth", `{"endpoint":"https://push.example/abc","keys":{"p256dh":"p"}}`, models.ErrMissingKeys.Error()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/push/subscribe", strings.NewReader(tc.body))
			req = authedRequest(t, req, tenantUser())
			rec := httptest.NewRecorder()
			AuthMiddleware(h.SubscribeHandler)(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.want, resp["error"])
			assert.Empty(t, st.subscriptions)
		})
	}
}

func TestSubscribeUpsertsEndpoint(t *testing.T) {
	h, st, _, _ := newTestHandler()
	user := tenantUser()

	subscribe := func(body string) map[string]any {
		req := httptest.NewRequest(http.MethodPost, "/api/push/subscribe", strings.NewReader(body))
		req = authedRequest(t, req, user)
		rec := httptest.NewRecorder()
		AuthMiddleware(h.SubscribeHandler)(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	first := subscribe(`{"endpoint":"https://push.example/abc","keys":{"p256dh":"old","auth":"a"}}`)
	second := subscribe(`{"endpoint":"https://push.example/abc","keys":{"p256dh":"new","auth":"a"}}`)

	assert.Equal(t, first["subscriptionId"], second["subscriptionId"])
	require.Len(t, st.subscriptions, 1)
	assert.Equal(t, "new", st.subscriptions["https://push.example/abc"].P256dh)
	assert.Equal(t, user.ID, st.subscriptions["https://push.example/abc"].UserID)
}

func TestUnsubscribeOwnership(t *testing.T) {
	h, st, _, _ := newTestHandler()
	owner := tenantUser()
	other := models.User{ID: 99, Name: "Other", Email: "other@example.com", Roles: []models.UserRole{models.RoleTenant}}

	st.subscriptions["https://push.example/abc"] = models.PushSubscription{ID: 1, UserID: owner.ID, Endpoint: "https://push.example/abc"}

	unsubscribe := func(user models.User) *httptest.ResponseRecorder {
		body := `{"endpoint":"https://push.example/abc"}`
		req := httptest.NewRequest(http.MethodPost, "/api/push/unsubscribe", strings.NewReader(body))
		req = authedRequest(t, req, user)
		rec := httptest.NewRecorder()
		AuthMiddleware(h.UnsubscribeHandler)(rec, req)
		return rec
	}

	// Someone else's endpoint: reports success but removes nothing.
	rec := unsubscribe(other)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, st.subscriptions, 1)

	rec = unsubscribe(owner)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, st.subscriptions)

	// Removing an endpoint that is already gone still succeeds.
	rec = unsubscribe(owner)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnsubscribeAdminRemovesAny(t *testing.T) {
	h, st, _, _ := newTestHandler()
	st.subscriptions["https://push.example/abc"] = models.PushSubscription{ID: 1, UserID: 42, Endpoint: "https://push.example/abc"}

	body := `{"endpoint":"https://push.example/abc"}`
	req := httptest.NewRequest(http.MethodPost, "/api/push/unsubscribe", strings.NewReader(body))
	req = authedRequest(t, req, adminUser())
	rec := httptest.NewRecorder()
	AuthMiddleware(h.UnsubscribeHandler)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, st.subscriptions)
}

func TestSendPushValidation(t *testing.T) {
	h, _, feed, notifier := newTestHandler()

	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing user", `{"title":"Rent due","body":"Pay up"}`, "userId is required"},
		{"missing title", `{"body":"Pay up","userId":7}`, models.ErrMissingTitle.Error()},
		{"missing body", `{"title":"Rent due","userId":7}`, models.ErrMissingBody.Error()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/push/send", strings.NewReader(tc.body))
			req = authedRequest(t, req, adminUser())
			rec := httptest.NewRecorder()
			AuthMiddleware(h.SendPushHandler)(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.want, resp["error"])
		})
	}

	assert.Zero(t, notifier.calls())
	assert.Empty(t, feed.notifications)
}

func TestSendPushRecordsFeed(t *testing.T) {
	h, _, feed, notifier := newTestHandler()
	notifier.result = push.Result{Sent: 2, Failed: 1, Total: 3}

	body := `{"title":"Rent due","body":"March rent is due","userId":7}`
	req := httptest.NewRequest(http.MethodPost, "/api/push/send", strings.NewReader(body))
	req = authedRequest(t, req, adminUser())
	rec := httptest.NewRecorder()
	AuthMiddleware(h.SendPushHandler)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.EqualValues(t, 2, resp["sent"])
	assert.EqualValues(t, 1, resp["failed"])

	require.Len(t, feed.notifications[7], 1)
	assert.Equal(t, "Rent due", feed.notifications[7][0].Title)
	assert.Len(t, feed.events, 1)
}

func TestBroadcastRequiresAdmin(t *testing.T) {
	h, _, _, notifier := newTestHandler()

	body := `{"title":"Maintenance","body":"Water off tomorrow"}`
	req := httptest.NewRequest(http.MethodPost, "/api/push/broadcast", strings.NewReader(body))
	req = authedRequest(t, req, tenantUser())
	rec := httptest.NewRecorder()
	RoleMiddleware(h.BroadcastPushHandler, models.RoleAdmin)(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, notifier.calls())
}

func TestBroadcastEmptyRegistryMessage(t *testing.T) {
	h, _, _, _ := newTestHandler()

	body := `{"title":"Maintenance","body":"Water off tomorrow"}`
	req := httptest.NewRequest(http.MethodPost, "/api/push/broadcast", strings.NewReader(body))
	req = authedRequest(t, req, adminUser())
	rec := httptest.NewRecorder()
	RoleMiddleware(h.BroadcastPushHandler, models.RoleAdmin)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["success"])
	assert.EqualValues(t, 0, resp["total"])
	assert.Equal(t, "No active subscriptions. Please subscribe first.", resp["message"])
}
