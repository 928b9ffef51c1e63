package tbremote

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFamily(t *testing.T) {
	for in, want := range map[string]Family{
		"ona1000":   FamilyONA1000,
		"ONA-1000":  FamilyONA1000,
		"tberd5800": FamilyTBERD5800,
		"T-BERD":    FamilyTBERD5800,
	} {
		got, err := ParseFamily(in)
		if assert.NoError(t, err, "ParseFamily(%q)", in) {
			assert.Equal(t, want, got, "ParseFamily(%q)", in)
		}
	}

	_, err := ParseFamily("mts")
	assert.True(t, IsValidation(err))
}

func TestBuiltinProfiles(t *testing.T) {
	ona := ONA1000Profile()
	assert.Equal(t, ONABootstrapPort, ona.BootstrapPort)
	assert.Equal(t, "TM400G-1", ona.ModuleName)
	assert.Equal(t, 2, ona.HandshakeAttempts)
	assert.True(t, ona.GUIOnExitWhenVisible)

	tb := TBERD5800Profile()
	assert.Equal(t, TBERDBootstrapPort, tb.BootstrapPort)
	assert.Equal(t, `BOTH,BASE,"BERT"`, tb.ModuleParams)
	assert.False(t, tb.GUIOnExitWhenVisible)

	assert.Equal(t, FamilyTBERD5800, ProfileFor(FamilyTBERD5800).Family)
	assert.True(t, tb.IsValidPort(2))
	assert.False(t, tb.IsValidPort(3))
}

func TestProfile_CloneDoesNotShare(t *testing.T) {
	p := ONA1000Profile()
	c := p.WithBootstrapPort(15025)

	c.ValidPorts[0] = 9
	c.Catalog[0].AppID = "changed"

	assert.Equal(t, ONABootstrapPort, p.BootstrapPort)
	assert.Equal(t, 15025, c.BootstrapPort)
	assert.Equal(t, 1, p.ValidPorts[0])
	assert.Equal(t, "TermEth100GL2Traffic", p.Catalog[0].AppID)
}

func TestParseProfile(t *testing.T) {
	data := []byte(`
family: tberd5800
name: lab bench 3
bootstrap_port: 18000
valid_ports: [1]
catalog:
  - label: 10GE Layer 2 Traffic Term
    app: TermEth10GL2Traffic
min_launch_timeout: 2m
retry_delay: 500ms
`)
	p, err := ParseProfile(data)
	require.NoError(t, err)

	assert.Equal(t, FamilyTBERD5800, p.Family)
	assert.Equal(t, "lab bench 3", p.Name)
	assert.Equal(t, 18000, p.BootstrapPort)
	assert.Equal(t, []int{1}, p.ValidPorts)
	assert.Equal(t, []CatalogEntry{{Label: "10GE Layer 2 Traffic Term", AppID: "TermEth10GL2Traffic"}}, p.Catalog)
	assert.Equal(t, 2*time.Minute, p.MinLaunchTimeout)
	assert.Equal(t, 500*time.Millisecond, p.RetryDelay)

	// Unset fields keep the family defaults
	assert.Equal(t, `BOTH,BASE,"BERT"`, p.ModuleParams)
	assert.Equal(t, 1, p.HandshakeAttempts)
}

func TestParseProfile_Errors(t *testing.T) {
	_, err := ParseProfile([]byte("family: ona1000\nunknown_key: 1\n"))
	assert.Error(t, err, "unknown keys should be rejected")

	_, err = ParseProfile([]byte("family: ona1000\nsettle_delay: soon\n"))
	assert.True(t, IsValidation(err))

	_, err = ParseProfile([]byte("family: nope\n"))
	assert.True(t, IsValidation(err))
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ona.yaml")
	require.NoError(t, os.WriteFile(path, []byte("family: ona1000\nmodule: TM800G-1\n"), 0o600))

	p, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "TM800G-1", p.ModuleName)
	assert.Equal(t, ONABootstrapPort, p.BootstrapPort)

	_, err = LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
