package identity

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/meeting-engine/meeting"
)

func TestJWTResolver_IssueAndResolve(t *testing.T) {
	// GIVEN: a resolver and a token for Omer
	r, err := NewJWTResolver("s3cret", time.Hour, nil)
	require.NoError(t, err)
	token, err := r.Issue(meeting.EmployeeRef{ID: "8", Name: "Omer Levi"})
	require.NoError(t, err)

	// WHEN: resolving with and without the bearer prefix
	ref, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	prefixed, err := r.Resolve(context.Background(), "Bearer "+token)
	require.NoError(t, err)

	// THEN: same employee
	assert.Equal(t, meeting.EmployeeRef{ID: "8", Name: "Omer Levi"}, ref)
	assert.Equal(t, ref, prefixed)
}

func TestJWTResolver_FillsNameFromDirectory(t *testing.T) {
	names := func(_ context.Context, id string) (string, bool) {
		if id == "7" {
			return "Jane Doe", true
		}
		return "", false
	}
	r, err := NewJWTResolver("s3cret", time.Hour, names)
	require.NoError(t, err)
	token, err := r.Issue(meeting.EmployeeRef{ID: "7"})
	require.NoError(t, err)

	ref, err := r.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", ref.Name)
}

func TestJWTResolver_Rejects(t *testing.T) {
	r, err := NewJWTResolver("s3cret", time.Hour, nil)
	require.NoError(t, err)
	other, err := NewJWTResolver("other", time.Hour, nil)
	require.NoError(t, err)
	foreign, err := other.Issue(meeting.EmployeeRef{ID: "8"})
	require.NoError(t, err)

	expired, err := r.Issue(meeting.EmployeeRef{ID: "8"})
	require.NoError(t, err)
	later, _ := NewJWTResolver("s3cret", time.Hour, nil)
	later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "8",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name     string
		resolver *JWTResolver
		token    string
	}{
		{"empty", r, ""},
		{"garbage", r, "not-a-token"},
		{"wrong secret", r, foreign},
		{"expired", later, expired},
		{"alg none", r, unsigned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.resolver.Resolve(context.Background(), tt.token)
			assert.ErrorIs(t, err, meeting.ErrUnauthenticated)
		})
	}
}

func TestNewJWTResolver_RequiresSecret(t *testing.T) {
	_, err := NewJWTResolver("", time.Hour, nil)
	assert.Error(t, err)
}
