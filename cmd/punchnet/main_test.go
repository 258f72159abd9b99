package main

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-punchnet/config"
)

func parseFlags(t *testing.T, args ...string) (*flag.FlagSet, *cliFlags) {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := &cliFlags{}
	fs.IntVar(&f.port, "port", config.DefaultListenPort, "")
	fs.StringVar(&f.relay, "relay", "", "")
	fs.IntVar(&f.secret, "secret", 0, "")
	fs.StringVar(&f.portMap, "portmap", "", "")
	fs.StringVar(&f.addr, "addr", "", "")
	require.NoError(t, fs.Parse(args))
	return fs, f
}

func TestBuildConfig_Host(t *testing.T) {
	fs, f := parseFlags(t, "-port", "7800", "-relay", "203.0.113.10", "-secret", "42", "-portmap", "upnp")

	cfg, err := buildConfig(modeHost, fs, f)
	require.NoError(t, err)
	assert.Equal(t, "server", cfg.Role)
	assert.Equal(t, 7800, cfg.ListenPort)
	assert.Equal(t, "203.0.113.10", cfg.NAT.RelayAddress)
	assert.Equal(t, int32(42), cfg.Discovery.Secret)
	assert.Equal(t, config.PortMappingUPnP, cfg.NAT.PortMapping)
}

func TestBuildConfig_UnsetFlagsKeepDefaults(t *testing.T) {
	fs, f := parseFlags(t)

	cfg, err := buildConfig(modeDiscover, fs, f)
	require.NoError(t, err)
	def := config.NewConfig()
	assert.Equal(t, "client", cfg.Role)
	assert.Equal(t, def.Discovery.Secret, cfg.Discovery.Secret)
	assert.Equal(t, def.NAT.RelayAddress, cfg.NAT.RelayAddress)
}

func TestBuildConfig_JoinRequiresAddr(t *testing.T) {
	fs, f := parseFlags(t)
	_, err := buildConfig(modeJoin, fs, f)
	assert.Error(t, err)

	fs, f = parseFlags(t, "-addr", "198.51.100.7")
	cfg, err := buildConfig(modeJoin, fs, f)
	require.NoError(t, err)
	assert.Equal(t, "client", cfg.Role)
}

func TestBuildConfig_Invalid(t *testing.T) {
	fs, f := parseFlags(t, "-relay", "not-an-ip")
	_, err := buildConfig(modeHost, fs, f)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRun_UnknownMode(t *testing.T) {
	assert.Error(t, run([]string{"fly"}))
	assert.Error(t, run(nil))
	assert.NoError(t, run([]string{"help"}))
}
