package tokenctl

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/kiwes/internal/common"
	"github.com/dmitrijs2005/kiwes/internal/logging"
	"github.com/dmitrijs2005/kiwes/internal/server/auth"
	"github.com/dmitrijs2005/kiwes/internal/server/metrics"
	"github.com/dmitrijs2005/kiwes/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef-ctl")

type nopStore struct{}

func (nopStore) Save(context.Context, *models.RefreshToken) error { return nil }

func mint(t *testing.T) *models.TokenPair {
	t.Helper()
	e, err := auth.NewEngine(auth.Settings{
		Secret:          testSecret,
		AccessTokenTTL:  30 * time.Minute,
		RefreshTokenTTL: time.Hour,
	}, nopStore{}, nil, logging.NewDiscardLogger(), metrics.Noop{})
	require.NoError(t, err)

	pair, err := e.Mint(context.Background(), auth.Principal{
		Subject:     "minji@kiwes.test",
		Authorities: []string{common.RoleUser},
	}, "u-1")
	require.NoError(t, err)
	return pair
}

func stubPassword(t *testing.T, pw string, err error) {
	t.Helper()
	orig := readPassword
	readPassword = func(int) ([]byte, error) { return []byte(pw), err }
	t.Cleanup(func() { readPassword = orig })
}

func TestKeygen(t *testing.T) {
	var out, errOut bytes.Buffer
	require.Equal(t, 0, Run([]string{"keygen"}, &out, &errOut))

	secret, err := base64.StdEncoding.DecodeString(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Len(t, secret, defaultSecretBytes)

	out.Reset()
	require.Equal(t, 0, Run([]string{"keygen", "-bytes", "48"}, &out, &errOut))
	secret, err = base64.StdEncoding.DecodeString(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Len(t, secret, 48)

	assert.Equal(t, 1, Run([]string{"keygen", "-bytes", "8"}, &out, &errOut))
	assert.Contains(t, errOut.String(), "at least")
}

func TestInspectAccessToken(t *testing.T) {
	t.Setenv("KIWES_SECRET_KEY", base64.StdEncoding.EncodeToString(testSecret))
	stubPassword(t, "Bearer "+mint(t).AccessToken, nil)

	var out, errOut bytes.Buffer
	require.Equal(t, 0, Run([]string{"inspect"}, &out, &errOut), errOut.String())

	got := out.String()
	assert.Regexp(t, `kind:\s+access`, got)
	assert.Regexp(t, `valid:\s+yes`, got)
	assert.Regexp(t, `subject:\s+minji@kiwes.test`, got)
	assert.Regexp(t, `authorities:\s+ROLE_USER`, got)
	assert.Regexp(t, `remaining:\s+(29m|30m)`, got)
}

func TestInspectRefreshToken(t *testing.T) {
	t.Setenv("KIWES_SECRET_KEY", base64.StdEncoding.EncodeToString(testSecret))
	stubPassword(t, mint(t).RefreshToken, nil)

	var out, errOut bytes.Buffer
	require.Equal(t, 0, Run([]string{"inspect"}, &out, &errOut), errOut.String())
	assert.Regexp(t, `kind:\s+refresh`, out.String())
	assert.Regexp(t, `valid:\s+yes`, out.String())
	assert.NotContains(t, out.String(), "subject")
}

func TestInspectWrongSecret(t *testing.T) {
	other := bytes.Repeat([]byte("x"), 40)
	t.Setenv("KIWES_SECRET_KEY", base64.StdEncoding.EncodeToString(other))
	stubPassword(t, mint(t).AccessToken, nil)

	var out, errOut bytes.Buffer
	require.Equal(t, 0, Run([]string{"inspect"}, &out, &errOut), errOut.String())
	assert.Regexp(t, `valid:\s+no \(malformed token signature`, out.String())
	assert.NotContains(t, out.String(), "subject")
}

func TestInspectErrors(t *testing.T) {
	t.Run("no secret", func(t *testing.T) {
		t.Setenv("KIWES_SECRET_KEY", "")
		var out, errOut bytes.Buffer
		assert.Equal(t, 1, Run([]string{"inspect"}, &out, &errOut))
		assert.Contains(t, errOut.String(), "secret key is required")
	})

	t.Run("terminal", func(t *testing.T) {
		t.Setenv("KIWES_SECRET_KEY", base64.StdEncoding.EncodeToString(testSecret))
		stubPassword(t, "", errors.New("not a terminal"))
		var out, errOut bytes.Buffer
		assert.Equal(t, 1, Run([]string{"inspect"}, &out, &errOut))
		assert.Contains(t, errOut.String(), "not a terminal")
	})

	t.Run("empty token", func(t *testing.T) {
		t.Setenv("KIWES_SECRET_KEY", base64.StdEncoding.EncodeToString(testSecret))
		stubPassword(t, "  ", nil)
		var out, errOut bytes.Buffer
		assert.Equal(t, 1, Run([]string{"inspect"}, &out, &errOut))
		assert.Contains(t, errOut.String(), "empty token")
	})
}

func TestRunUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, 2, Run(nil, &out, &errOut))
	assert.Contains(t, errOut.String(), "usage: tokenctl")

	errOut.Reset()
	assert.Equal(t, 2, Run([]string{"rotate"}, &out, &errOut))
	assert.Contains(t, errOut.String(), `unknown command "rotate"`)

	assert.Equal(t, 0, Run([]string{"help"}, &out, &errOut))
}

func TestUpload(t *testing.T) {
	var got []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "image/jpeg", r.Header.Get("Content-Type"))
		got, _ = io.ReadAll(r.Body)
	}))
	defer ts.Close()

	path := filepath.Join(t.TempDir(), "minji.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg-bytes"), 0o600))

	var out, errOut bytes.Buffer
	require.Equal(t, 0, Run([]string{"upload", "-url", ts.URL + "/kiwes/profileimg/minji.jpg?sig=1", "-file", path}, &out, &errOut), errOut.String())
	assert.Equal(t, "jpeg-bytes", string(got))
	assert.Contains(t, out.String(), "uploaded 10 bytes")

	errOut.Reset()
	assert.Equal(t, 1, Run([]string{"upload", "-file", path}, &out, &errOut))
	assert.Contains(t, errOut.String(), "-url and -file")

	errOut.Reset()
	assert.Equal(t, 1, Run([]string{"upload", "-url", ts.URL, "-file", filepath.Join(t.TempDir(), "missing.jpg")}, &out, &errOut))
	assert.NotEmpty(t, errOut.String())
}
