package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jwttoken "heritage/internal/jwt_token"
	"heritage/internal/platform/config"
	dErrors "heritage/pkg/domain-errors"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(t.Context())
	return out.String(), err
}

func TestTokenCmd(t *testing.T) {
	t.Setenv("HERITAGE_ENV", "development")
	t.Setenv("JWT_SIGNING_KEY", "cli-test-key")

	out, err := run(t, "token", "--user", "u-7", "--slug", "anil-sharma", "--admin")
	require.NoError(t, err)

	cfg := config.FromEnv()
	svc := jwttoken.NewJWTService(cfg.JWT.SigningKey, cfg.JWT.Issuer, cfg.JWT.Audience)
	claims, err := svc.ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "u-7", claims.UserID)
	assert.Equal(t, "anil-sharma", claims.MemberSlug)
	assert.Equal(t, []string{"admin"}, claims.Roles)
}

func TestTokenCmd_RequiresUser(t *testing.T) {
	_, err := run(t, "token")
	assert.Error(t, err)
}

func TestTokenCmd_RefusesProduction(t *testing.T) {
	t.Setenv("HERITAGE_ENV", "production")
	_, err := run(t, "token", "--user", "u-7")
	assert.Error(t, err)
}

func TestSeedCheck_EmbeddedRoster(t *testing.T) {
	out, err := run(t, "seed", "check", "--json")
	require.NoError(t, err)

	var report struct {
		Members     int               `json:"members"`
		Generations int               `json:"generations"`
		Diagnostics []json.RawMessage `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Positive(t, report.Members)
	assert.GreaterOrEqual(t, report.Generations, 3)
}

func TestSeedCheck_ReportsDiagnostics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	roster := `members:
  - id: 1
    slug: ram
    name: Ram
    gender: male
    spouse_id: 2
  - id: 2
    slug: sita
    name: Sita
    gender: female
`
	require.NoError(t, os.WriteFile(path, []byte(roster), 0o600))

	out, err := run(t, "seed", "check", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "members:     2")
	assert.Contains(t, out, "asymmetric_spouse")
}

func TestSeedRelate(t *testing.T) {
	out, err := run(t, "seed", "relate", "anil-sharma", "asha-sharma")
	require.NoError(t, err)
	assert.Equal(t, "brother\n", out)

	_, err = run(t, "seed", "relate", "anil-sharma", "nobody")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownMember))
}
