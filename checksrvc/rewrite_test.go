package checksrvc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestRewriteSecretsReplacesScalars(t *testing.T) {
	plan := []byte(`
stages:
  - checkout:
      repository: https://vcs.example.com/src1/src1-tests.git
      token: old-secret-token
  - build:
      script: mvn -B test
`)
	out, err := RewriteSecrets(plan, map[string]string{
		"https://vcs.example.com/src1/src1-tests.git": "https://vcs.example.com/ex1/ex1-tests.git",
		"old-secret-token": "new-secret-token",
	})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(out, &doc))
	assert.Contains(t, string(out), "ex1-tests.git")
	assert.Contains(t, string(out), "new-secret-token")
	assert.NotContains(t, string(out), "old-secret-token")
	assert.NotContains(t, string(out), "src1-tests.git")
	assert.Contains(t, string(out), "mvn -B test", "untouched scalars survive the rewrite")
}

func TestRewriteSecretsReplacesSubstringsInsideLargerValues(t *testing.T) {
	plan := []byte("script: git clone https://vcs.example.com/src1/src1-tests.git target\n")

	out, err := RewriteSecrets(plan, map[string]string{
		"https://vcs.example.com/src1/src1-tests.git": "https://vcs.example.com/ex1/ex1-tests.git",
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), "git clone https://vcs.example.com/ex1/ex1-tests.git target")
}

func TestRewriteSecretsNoReplacements(t *testing.T) {
	plan := []byte("a: b\n")
	out, err := RewriteSecrets(plan, nil)
	require.NoError(t, err)
	assert.Equal(t, plan, out)
}

func TestRewriteSecretsInvalidDocument(t *testing.T) {
	_, err := RewriteSecrets([]byte("\t: not yaml"), map[string]string{"a": "b"})
	assert.Error(t, err)
}
