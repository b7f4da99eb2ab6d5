package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paysuit/internal/models"
)

func TestMain(m *testing.M) {
	// Set before any session use so the lazily built cookie store picks the
	// operator's secret up, the same ordering main gives godotenv.
	os.Setenv("SESSION_SECRET", "operator-chosen-secret")
	os.Exit(m.Run())
}

// A cookie signed with the fallback secret must not decode once
// SESSION_SECRET is configured.
func TestConfiguredSecretRejectsDefaultSignedCookie(t *testing.T) {
	stale := sessions.NewCookieStore([]byte("secret-key-change-in-production"))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	rec := httptest.NewRecorder()
	session, err := stale.Get(req, sessionName)
	require.NoError(t, err)
	session.Values["user_id"] = 1
	session.Values["name"] = "Mallory"
	session.Values["email"] = "mallory@example.com"
	session.Values["roles"] = "admin"
	require.NoError(t, session.Save(req, rec))

	forged := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	for _, cookie := range rec.Result().Cookies() {
		forged.AddCookie(cookie)
	}

	_, ok := CurrentClaims(forged)
	assert.False(t, ok, "cookie keyed on the fallback secret must not authenticate")
}

func TestConfiguredSecretRoundTrips(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req = authedRequest(t, req, adminUser())

	claims, ok := CurrentClaims(req)
	require.True(t, ok)
	assert.Equal(t, adminUser().ID, claims.UserID)
	assert.True(t, claims.Has(models.RoleAdmin))
}
