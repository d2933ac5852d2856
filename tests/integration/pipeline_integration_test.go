package integration

import (
	"archive/zip"
	"context"
	"io"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/droid-builder/generator-api/internal/genai"
	"github.com/appforge/droid-builder/generator-api/internal/models"
	"github.com/appforge/droid-builder/generator-api/internal/orchestration"
	"github.com/appforge/droid-builder/generator-api/internal/project"
	"github.com/appforge/droid-builder/generator-api/tests/helpers"
)

// TestPromptToArchiveIntegration runs the whole pipeline against a stubbed
// model backend: prompt in, zip archive out.
func TestPromptToArchiveIntegration(t *testing.T) {
	server := helpers.NewModelStubServer(t, helpers.DefaultProjectFiles)

	client := genai.NewHostedClient(server.URL, "stub-model")
	workspaces, err := project.NewWorkspaces(t.TempDir())
	require.NoError(t, err)

	pipeline := &orchestration.Pipeline{
		Generator:  client,
		Workspaces: workspaces,
	}

	outDir := t.TempDir()
	var stages []models.GenerationStatus
	result, err := pipeline.Execute(context.Background(), "int-1",
		helpers.DefaultTestPrompt.Prompt, helpers.DefaultTestPrompt.AppName, outDir,
		func(s models.GenerationStatus) { stages = append(stages, s) })
	require.NoError(t, err)

	assert.False(t, result.TemplateFallback)
	assert.Equal(t, len(helpers.DefaultProjectFiles), result.FileCount)
	assert.Equal(t, []models.GenerationStatus{
		models.StatusGenerating,
		models.StatusMaterializing,
		models.StatusArchiving,
	}, stages)

	// The archive must hold exactly the model's files, with forward-slash
	// entry names in sorted order.
	reader, err := zip.OpenReader(result.ArchivePath)
	require.NoError(t, err)
	defer reader.Close()

	wantPaths := make([]string, 0, len(helpers.DefaultProjectFiles))
	for p := range helpers.DefaultProjectFiles {
		wantPaths = append(wantPaths, p)
	}
	sort.Strings(wantPaths)

	gotPaths := make([]string, 0, len(reader.File))
	for _, f := range reader.File {
		gotPaths = append(gotPaths, f.Name)

		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		assert.Equal(t, helpers.DefaultProjectFiles[f.Name], string(content))
	}
	assert.Equal(t, wantPaths, gotPaths)
}

// TestPromptToArtifactIntegration exercises the optional build stage with a
// stub build command that writes the expected APK output.
func TestPromptToArtifactIntegration(t *testing.T) {
	server := helpers.NewModelStubServer(t, helpers.DefaultProjectFiles)

	client := genai.NewHostedClient(server.URL, "stub-model")
	workspaces, err := project.NewWorkspaces(t.TempDir())
	require.NoError(t, err)

	artifactRel := project.DefaultArtifactRelPath
	pipeline := &orchestration.Pipeline{
		Generator:  client,
		Workspaces: workspaces,
		Invoker: &project.Invoker{
			Command: []string{"sh", "-c",
				"mkdir -p " + filepath.Dir(artifactRel) + " && printf fake-apk > " + artifactRel},
			ArtifactRelPath: artifactRel,
			Timeout:         30 * time.Second,
		},
	}

	outDir := t.TempDir()
	result, err := pipeline.Execute(context.Background(), "int-2",
		helpers.DefaultTestPrompt.Prompt, helpers.DefaultTestPrompt.AppName, outDir,
		func(models.GenerationStatus) {})
	require.NoError(t, err)

	assert.Equal(t, models.ArtifactPresent, result.ArtifactState)
	assert.FileExists(t, result.ArchivePath)
	assert.FileExists(t, result.ArtifactPath)
}

// TestModelOutageFallsBackToTemplate verifies that an unreachable backend
// still yields a downloadable starter project.
func TestModelOutageFallsBackToTemplate(t *testing.T) {
	client := genai.NewHostedClient("http://127.0.0.1:1", "stub-model")
	workspaces, err := project.NewWorkspaces(t.TempDir())
	require.NoError(t, err)

	pipeline := &orchestration.Pipeline{
		Generator:  client,
		Workspaces: workspaces,
	}

	result, err := pipeline.Execute(context.Background(), "int-3",
		helpers.DefaultTestPrompt.Prompt, helpers.DefaultTestPrompt.AppName, t.TempDir(),
		func(models.GenerationStatus) {})
	require.NoError(t, err)

	assert.True(t, result.TemplateFallback)
	assert.FileExists(t, result.ArchivePath)

	reader, err := zip.OpenReader(result.ArchivePath)
	require.NoError(t, err)
	defer reader.Close()
	assert.NotEmpty(t, reader.File)
}
