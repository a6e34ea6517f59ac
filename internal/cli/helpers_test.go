package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nickmerrett/iso-downloader/internal/logger"
)

func TestConfigPath(t *testing.T) {
	ConfigPath = nil
	assert.Equal(t, DefaultConfigPath, configPath())

	empty := ""
	ConfigPath = &empty
	assert.Equal(t, DefaultConfigPath, configPath())

	custom := "/etc/isodl/config.yaml"
	ConfigPath = &custom
	assert.Equal(t, custom, configPath())

	ConfigPath = nil
}

func TestInitLoggingVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger.SetTestOutput(&buf)
	defer logger.UnsetTestOutput()

	quiet := false
	Verbose = &quiet
	initLogging()
	logger.Debug("hidden at info level")
	assert.NotContains(t, buf.String(), "hidden at info level")

	loud := true
	Verbose = &loud
	initLogging()
	logger.Debug("visible at debug level")
	assert.Contains(t, buf.String(), "visible at debug level")

	Verbose = nil
}
