package project

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// DefaultArtifactRelPath is where the Android debug build drops its APK.
const DefaultArtifactRelPath = "app/build/outputs/apk/debug/app-debug.apk"

// BuildResult is the outcome of one build invocation. Success reflects the
// process exit status only; ArtifactPath is empty when the build succeeded
// but the expected output was not found, which callers must treat as a
// distinct condition from a failed build.
type BuildResult struct {
	Success      bool
	ExitCode     int
	Output       string
	ArtifactPath string
	Duration     time.Duration
}

// ArtifactPresent reports whether the build produced the expected artifact.
func (r *BuildResult) ArtifactPresent() bool {
	return r.Success && r.ArtifactPath != ""
}

// Invoker runs an external build tool inside a project directory. The
// invocation is synchronous and single-shot: no retry, no incremental
// recovery. The context plus Timeout bound the child process, and
// cancellation terminates it.
type Invoker struct {
	// Command is the build invocation, e.g. ["gradle", "assembleDebug"].
	Command []string
	// ArtifactRelPath is the expected output location relative to the
	// project directory, resolved only after a zero exit status.
	ArtifactRelPath string
	Timeout         time.Duration
}

// NewInvoker parses a space-separated command line into an Invoker with the
// default artifact location.
func NewInvoker(commandLine string, timeout time.Duration) (*Invoker, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, fmt.Errorf("build command cannot be empty")
	}
	return &Invoker{
		Command:         fields,
		ArtifactRelPath: DefaultArtifactRelPath,
		Timeout:         timeout,
	}, nil
}

// Run executes the build command with projectDir as its working directory
// and captures combined stdout/stderr. A nonzero exit status is reported
// through the result, not as an error; errors are reserved for failures to
// run the tool at all (missing binary, cancelled context, bad projectDir).
func (inv *Invoker) Run(ctx context.Context, projectDir string) (*BuildResult, error) {
	if len(inv.Command) == 0 {
		return nil, fmt.Errorf("build command cannot be empty")
	}
	if inv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, inv.Timeout)
		defer cancel()
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, inv.Command[0], inv.Command[1:]...)
	cmd.Dir = projectDir
	output, err := cmd.CombinedOutput()
	result := &BuildResult{
		Output:   string(output),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("build interrupted: %w", ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.Success = false
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("build invocation failed: %w", err)
	}

	result.Success = true
	result.ExitCode = 0

	artifact := filepath.Join(projectDir, filepath.FromSlash(inv.ArtifactRelPath))
	if _, statErr := os.Stat(artifact); statErr == nil {
		result.ArtifactPath = artifact
	}
	return result, nil
}
