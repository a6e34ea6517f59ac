package downloader

import (
	"os"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"

	"github.com/nickmerrett/iso-downloader/internal/logger"
	"github.com/nickmerrett/iso-downloader/pkg/errors"
)

// HookExecutor runs the post-download Tengo script hook.
type HookExecutor interface {
	ExecuteHook(hookPath string, context *HookContext) error
}

// HookContext provides information about the completed download to hook
// scripts, exposed as the global variables job_name, url, filepath and
// size_bytes.
type HookContext struct {
	JobName   string
	URL       string
	Filepath  string
	SizeBytes int64
}

// HookExecutorImpl is the default implementation of HookExecutor.
type HookExecutorImpl struct{}

// NewHookExecutor creates a new hook executor instance.
func NewHookExecutor() *HookExecutorImpl {
	return &HookExecutorImpl{}
}

// ExecuteHook executes a Tengo script hook with the provided context.
func (he *HookExecutorImpl) ExecuteHook(hookPath string, context *HookContext) error {
	scriptContent, err := os.ReadFile(hookPath)
	if err != nil {
		return errors.Wrapf(err, "failed to read hook script %s", hookPath)
	}

	logger.Debug("Executing post-download hook", logger.Fields{
		"hook_path": hookPath,
		"job":       context.JobName,
	})

	script := tengo.NewScript(scriptContent)
	script.SetImports(stdlib.GetModuleMap(stdlib.AllModuleNames()...))

	vars := map[string]interface{}{
		"job_name":   context.JobName,
		"url":        context.URL,
		"filepath":   context.Filepath,
		"size_bytes": context.SizeBytes,
	}
	for name, value := range vars {
		if err := script.Add(name, value); err != nil {
			return errors.Wrapf(err, "failed to bind hook variable %s", name)
		}
	}

	if _, err := script.Run(); err != nil {
		return errors.Wrapf(errors.ErrHookScript, "%s: %v", hookPath, err)
	}

	logger.Debug("Hook script executed successfully", logger.Fields{
		"hook_path": hookPath,
		"job":       context.JobName,
	})
	return nil
}

var _ HookExecutor = (*HookExecutorImpl)(nil)
