package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/library-circulation/internal/privilege"
)

func newManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	m, err := NewManager([]byte("test-secret"), "circ", "circ-api", ttl)
	require.NoError(t, err)
	return m
}

func TestNewManager_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewManager(nil, "i", "a", time.Minute)
	require.Error(t, err)
	_, err = NewManager([]byte("k"), "i", "a", 0)
	require.Error(t, err)
}

func TestSignVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	m := newManager(t, time.Minute)
	tok, exp, err := m.Sign("a@x.com", privilege.Librarian)
	require.NoError(t, err)
	require.NotEmpty(t, tok)
	require.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	c, err := m.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", c.Subject)
	require.Equal(t, "a@x.com", c.Email)
	require.Equal(t, privilege.Librarian, c.Role)
	require.NotEmpty(t, c.ID)

	tok2, _, err := m.Sign("a@x.com", privilege.Librarian)
	require.NoError(t, err)
	c2, err := m.Verify(tok2)
	require.NoError(t, err)
	require.NotEqual(t, c.ID, c2.ID, "jti must be unique per token")
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	m := newManager(t, time.Minute)
	m.now = func() time.Time { return time.Now().Add(-10 * time.Minute) }
	tok, _, err := m.Sign("a@x.com", privilege.Registered)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Verify(tok)
	require.Error(t, err)
}

func TestVerify_LeewayAllowsSmallClockSkew(t *testing.T) {
	t.Parallel()

	m := newManager(t, time.Minute)
	m.now = func() time.Time { return time.Now().Add(-70 * time.Second) }
	tok, _, err := m.Sign("a@x.com", privilege.Registered)
	require.NoError(t, err)

	m.now = time.Now
	_, err = m.Verify(tok)
	require.NoError(t, err)
}

func TestVerify_WrongKeyIssuerAudience(t *testing.T) {
	t.Parallel()

	m := newManager(t, time.Minute)
	tok, _, err := m.Sign("a@x.com", privilege.Admin)
	require.NoError(t, err)

	other, err := NewManager([]byte("other-secret"), "circ", "circ-api", time.Minute)
	require.NoError(t, err)
	_, err = other.Verify(tok)
	require.Error(t, err)

	wrongIss, err := NewManager([]byte("test-secret"), "someone-else", "circ-api", time.Minute)
	require.NoError(t, err)
	_, err = wrongIss.Verify(tok)
	require.Error(t, err)

	wrongAud, err := NewManager([]byte("test-secret"), "circ", "other-api", time.Minute)
	require.NoError(t, err)
	_, err = wrongAud.Verify(tok)
	require.Error(t, err)
}

func TestVerify_RejectsOtherAlgAndBadRole(t *testing.T) {
	t.Parallel()

	m := newManager(t, time.Minute)
	now := time.Now()

	none := jwt.NewWithClaims(jwt.SigningMethodNone, accessClaims{
		Role: "Admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "circ", Subject: "a@x.com", Audience: jwt.ClaimStrings{"circ-api"},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = m.Verify(raw)
	require.Error(t, err)

	badRole := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{
		Role: "Root",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer: "circ", Subject: "a@x.com", Audience: jwt.ClaimStrings{"circ-api"},
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	})
	raw, err = badRole.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = m.Verify(raw)
	require.Error(t, err)
}

func TestVerify_Garbage(t *testing.T) {
	t.Parallel()

	m := newManager(t, time.Minute)
	_, err := m.Verify("not.a.jwt")
	require.Error(t, err)
	_, err = m.Verify("")
	require.Error(t, err)
}
