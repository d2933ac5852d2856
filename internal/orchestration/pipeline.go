package orchestration

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/appforge/droid-builder/generator-api/internal/genai"
	"github.com/appforge/droid-builder/generator-api/internal/metrics"
	"github.com/appforge/droid-builder/generator-api/internal/models"
	"github.com/appforge/droid-builder/generator-api/internal/project"
)

var pipelineTracer = otel.Tracer("generation-pipeline")

// StageError tags a pipeline failure with the stage it occurred in, so the
// top level can render a user-facing message per stage while logs keep the
// original diagnostic.
type StageError struct {
	Stage models.GenerationStatus
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage extracts the stage from a pipeline error, or empty when the
// error carries no stage identity.
func FailedStage(err error) models.GenerationStatus {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// Pipeline runs one generation from prompt to archive (and optionally
// build) inside an isolated workspace. It holds no request state and is
// safe for concurrent use; all persistence lives in Service.
type Pipeline struct {
	Generator  genai.Generator
	Workspaces *project.Workspaces
	// Invoker is nil when builds are disabled.
	Invoker *project.Invoker
	// KeepWorkspaces leaves the materialized tree on disk for debugging.
	KeepWorkspaces bool
	// Metrics may be nil in tests.
	Metrics *metrics.GenerationMetrics
}

// PipelineResult captures the outputs of one successful pipeline run.
type PipelineResult struct {
	FileCount        int
	TemplateFallback bool
	ArchivePath      string
	ArtifactState    models.ArtifactState
	ArtifactPath     string
	BuildOutput      string
}

// Execute runs the full pipeline for one generation. Outputs land in
// outDir as <id>.zip and, when a build produces an artifact, <id>.apk.
// The notify callback is invoked when each stage starts.
func (p *Pipeline) Execute(ctx context.Context, id, prompt, appName, outDir string, notify func(models.GenerationStatus)) (*PipelineResult, error) {
	ctx, span := pipelineTracer.Start(ctx, "pipeline.execute")
	defer span.End()
	span.SetAttributes(attribute.String("generation.id", id))

	result := &PipelineResult{ArtifactState: models.ArtifactNone}

	// Stage: generating
	notify(models.StatusGenerating)
	stageStart := time.Now()
	fs, err := p.Generator.GenerateProject(ctx, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &StageError{Stage: models.StatusGenerating, Err: ctx.Err()}
		}
		// The model returned nothing usable. Fall back to the starter
		// template and record the degradation on the generation.
		log.Printf(`{"level":"warn","message":"Model output unusable, falling back to starter template","generation_id":"%s","error":"%v"}`, id, err)
		fs = project.StarterTemplate(appName)
		result.TemplateFallback = true
	}
	result.FileCount = len(fs)
	p.recordStage(ctx, models.StatusGenerating, stageStart)

	// Stage: materializing
	notify(models.StatusMaterializing)
	stageStart = time.Now()
	workDir, err := p.Workspaces.Prepare(id)
	if err != nil {
		return nil, &StageError{Stage: models.StatusMaterializing, Err: err}
	}
	if !p.KeepWorkspaces {
		defer func() {
			if err := p.Workspaces.Cleanup(workDir); err != nil {
				log.Printf(`{"level":"warn","message":"Workspace cleanup failed","generation_id":"%s","error":"%v"}`, id, err)
			}
		}()
	}
	if err := project.Materialize(fs, workDir); err != nil {
		return nil, &StageError{Stage: models.StatusMaterializing, Err: err}
	}
	p.recordStage(ctx, models.StatusMaterializing, stageStart)

	// Stage: archiving
	notify(models.StatusArchiving)
	stageStart = time.Now()
	archivePath := filepath.Join(outDir, id+".zip")
	if err := project.WriteArchive(workDir, archivePath); err != nil {
		return nil, &StageError{Stage: models.StatusArchiving, Err: err}
	}
	result.ArchivePath = archivePath
	p.recordStage(ctx, models.StatusArchiving, stageStart)

	// Stage: building (optional)
	if p.Invoker != nil {
		notify(models.StatusBuilding)
		buildResult, err := p.Invoker.Run(ctx, workDir)
		if err != nil {
			return nil, &StageError{Stage: models.StatusBuilding, Err: err}
		}
		result.BuildOutput = buildResult.Output
		switch {
		case !buildResult.Success:
			result.ArtifactState = models.ArtifactNone
			p.recordBuild(ctx, "failed", buildResult.Duration)
			// A failed build fails the generation; the archive already
			// written stays available through the row's archive_path.
			return result, &StageError{
				Stage: models.StatusBuilding,
				Err:   fmt.Errorf("build exited with code %d", buildResult.ExitCode),
			}
		case buildResult.ArtifactPresent():
			artifactOut := filepath.Join(outDir, id+".apk")
			if err := copyFile(buildResult.ArtifactPath, artifactOut); err != nil {
				return result, &StageError{Stage: models.StatusBuilding, Err: err}
			}
			result.ArtifactState = models.ArtifactPresent
			result.ArtifactPath = artifactOut
			p.recordBuild(ctx, "succeeded", buildResult.Duration)
		default:
			// Tool reported success but the expected output is missing.
			// Distinct from failure: the archive is still delivered.
			result.ArtifactState = models.ArtifactAbsent
			p.recordBuild(ctx, "artifact_missing", buildResult.Duration)
		}
	}

	span.SetAttributes(
		attribute.Int("generation.file_count", result.FileCount),
		attribute.Bool("generation.template_fallback", result.TemplateFallback),
		attribute.String("generation.artifact_state", string(result.ArtifactState)),
	)
	return result, nil
}

func (p *Pipeline) recordStage(ctx context.Context, stage models.GenerationStatus, start time.Time) {
	if p.Metrics != nil {
		p.Metrics.RecordStageDuration(ctx, string(stage), time.Since(start))
	}
}

func (p *Pipeline) recordBuild(ctx context.Context, outcome string, duration time.Duration) {
	if p.Metrics != nil {
		p.Metrics.RecordBuildOutcome(ctx, outcome, duration)
	}
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
