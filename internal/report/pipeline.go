// Package report implements the report generation pipeline: input validation,
// candidate selection, and the staged runner that drives a claimed job from
// processing to a terminal status.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sitebrief/sitebrief/internal/artifact"
	"github.com/sitebrief/sitebrief/internal/render"
	"github.com/sitebrief/sitebrief/internal/trackyard"
	"github.com/sitebrief/sitebrief/pkg/models"
)

// Pipeline stage names, in execution order.
const (
	StageFetchNotes       = "fetch-notes"
	StageFetchImages      = "fetch-images"
	StageValidate         = "validate"
	StageSummarize        = "summarize"
	StageSelectCandidates = "select-candidates"
	StageSelectFinal      = "select-final-images"
	StageDownloadImages   = "download-images"
	StageGenerateCaptions = "generate-captions"
	StageRenderSlides     = "render-slides"
	StageAssembleArtifact = "assemble-artifact"
	StageUploadArtifact   = "upload-artifact"
)

// fallbackCaption labels any selected image the captioner missed.
const fallbackCaption = "Site photo"

// ProgressFunc receives a progress event before and after each stage. It is
// observability only: it must not block and cannot affect control flow.
type ProgressFunc func(stage, message string)

// JobStore is the slice of the job store the pipeline needs.
type JobStore interface {
	GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, artifactPath string) error
	MarkFailed(ctx context.Context, id uuid.UUID, message string) error
}

// Options are the pipeline tuning knobs.
type Options struct {
	Thresholds      Thresholds
	MaxCandidates   int
	MinCandidates   int
	MaxImages       int
	MaxSummaryWords int
	MaxPhotoDays    int
	// InferenceTimeout bounds each AI provider call.
	InferenceTimeout time.Duration
	// WorkDir is where per-job scratch directories are created.
	WorkDir string
}

// Runner drives one claimed job through the fixed stage sequence. It is the
// single place that converts a stage failure into exactly one terminal job
// store write: validation failures surface their message verbatim, anything
// else is generalized and the original error only logged.
type Runner struct {
	store     JobStore
	trackyard trackyard.Client
	ai        models.AIProvider
	assembler render.Assembler
	artifacts artifact.Store
	opts      Options
}

func NewRunner(store JobStore, tc trackyard.Client, ai models.AIProvider, assembler render.Assembler, artifacts artifact.Store, opts Options) *Runner {
	if opts.InferenceTimeout <= 0 {
		opts.InferenceTimeout = 60 * time.Second
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	return &Runner{
		store:     store,
		trackyard: tc,
		ai:        ai,
		assembler: assembler,
		artifacts: artifacts,
		opts:      opts,
	}
}

// Run executes the pipeline for one job already in processing. It always
// attempts exactly one terminal store write and returns the stage error (if
// any) for the caller to log. A failed terminal write is itself only logged;
// the job stays processing for manual reconciliation.
func (r *Runner) Run(ctx context.Context, job *models.ReportJob, onProgress ProgressFunc) (err error) {
	emit := func(stage, message string) {
		if onProgress != nil {
			onProgress(stage, message)
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic in report pipeline", "job_id", job.ID, "panic", rec)
			err = r.fail(ctx, job.ID, fmt.Errorf("panic: %v", rec))
		}
	}()

	// fetch-notes. The project must be linked to a Trackyard project before
	// anything is fetched.
	emit(StageFetchNotes, "fetching daily log notes")
	project, err := r.store.GetProject(ctx, job.ProjectID)
	if err != nil {
		return r.fail(ctx, job.ID, fmt.Errorf("loading project %s: %w", job.ProjectID, err))
	}
	if project.TrackyardID == nil || *project.TrackyardID == "" {
		return r.fail(ctx, job.ID, &ValidationError{
			Message: fmt.Sprintf("project %q is not linked to a Trackyard project", project.Name),
		})
	}
	notes, err := r.trackyard.ListNotes(ctx, *project.TrackyardID, job.PeriodStart, job.PeriodEnd)
	if err != nil {
		return r.fail(ctx, job.ID, fmt.Errorf("fetching notes: %w", err))
	}
	emit(StageFetchNotes, fmt.Sprintf("fetched %d notes", len(notes)))

	// fetch-images
	emit(StageFetchImages, "fetching site photos")
	pool, err := r.trackyard.ListImages(ctx, *project.TrackyardID, job.PeriodStart, job.PeriodEnd)
	if err != nil {
		return r.fail(ctx, job.ID, fmt.Errorf("fetching images: %w", err))
	}
	emit(StageFetchImages, fmt.Sprintf("fetched %d images", len(pool)))

	// validate
	emit(StageValidate, "checking input volumes")
	if res := Validate(len(notes), len(pool), r.opts.Thresholds); !res.Valid {
		return r.fail(ctx, job.ID, &ValidationError{Message: res.Message})
	}
	emit(StageValidate, "input volumes ok")

	// summarize
	emit(StageSummarize, "summarizing daily logs")
	summary, err := r.summarize(ctx, project.Name, job, notes)
	if err != nil {
		return r.fail(ctx, job.ID, fmt.Errorf("summarizing notes: %w", err))
	}
	emit(StageSummarize, fmt.Sprintf("summary has %d bullets, %d photo days",
		len(summary.Bullets), len(summary.PhotoDays)))

	// select-candidates
	emit(StageSelectCandidates, "selecting candidate images")
	candidates := SelectCandidates(pool, summary.PhotoDays, SelectorOptions{
		MaxCandidates: r.opts.MaxCandidates,
		MinCandidates: r.opts.MinCandidates,
	})
	emit(StageSelectCandidates, fmt.Sprintf("%d candidates", len(candidates)))

	// select-final-images
	emit(StageSelectFinal, "ranking candidates")
	final, err := r.selectFinal(ctx, summary.Bullets, candidates)
	if err != nil {
		return r.fail(ctx, job.ID, fmt.Errorf("ranking images: %w", err))
	}
	emit(StageSelectFinal, fmt.Sprintf("%d images selected", len(final)))

	// download-images
	emit(StageDownloadImages, "downloading selected images")
	workDir, err := os.MkdirTemp(r.opts.WorkDir, "report-"+job.ID.String()+"-")
	if err != nil {
		return r.fail(ctx, job.ID, fmt.Errorf("creating work dir: %w", err))
	}
	defer os.RemoveAll(workDir)
	localPaths := make(map[string]string, len(final))
	for _, img := range final {
		path, err := r.trackyard.DownloadImage(ctx, img, workDir)
		if err != nil {
			return r.fail(ctx, job.ID, fmt.Errorf("downloading image %s: %w", img.ID, err))
		}
		localPaths[img.ID] = path
	}
	emit(StageDownloadImages, fmt.Sprintf("downloaded %d images", len(final)))

	// generate-captions
	emit(StageGenerateCaptions, "captioning images")
	captions, err := r.caption(ctx, final, summary.Bullets)
	if err != nil {
		return r.fail(ctx, job.ID, fmt.Errorf("captioning images: %w", err))
	}
	emit(StageGenerateCaptions, "captions ready")

	spec := buildSpec(project, job, summary, final, captions, localPaths)

	// render-slides
	emit(StageRenderSlides, "building slides")
	slides := render.BuildSlides(spec)
	emit(StageRenderSlides, fmt.Sprintf("%d slides", len(slides)))

	// assemble-artifact
	emit(StageAssembleArtifact, "assembling document")
	outPath, err := r.assembler.Assemble(ctx, spec, slides, workDir)
	if err != nil {
		return r.fail(ctx, job.ID, fmt.Errorf("assembling document: %w", err))
	}
	emit(StageAssembleArtifact, "document assembled")

	// upload-artifact
	emit(StageUploadArtifact, "uploading artifact")
	data, err := os.ReadFile(outPath)
	if err != nil {
		return r.fail(ctx, job.ID, fmt.Errorf("reading assembled document: %w", err))
	}
	key := fmt.Sprintf("reports/%s/%s.html", job.ProjectID, job.ID)
	storagePath, err := r.artifacts.Upload(ctx, data, key)
	if err != nil {
		return r.fail(ctx, job.ID, fmt.Errorf("uploading artifact: %w", err))
	}
	emit(StageUploadArtifact, "artifact uploaded")

	if err := r.store.MarkCompleted(ctx, job.ID, storagePath); err != nil {
		// The artifact exists but the status write failed; leave the job
		// processing for reconciliation rather than fabricating success.
		slog.Error("marking job completed failed", "job_id", job.ID, "error", err)
		return err
	}

	slog.Info("report generated", "job_id", job.ID, "project_id", job.ProjectID,
		"artifact_path", storagePath)
	return nil
}

func (r *Runner) summarize(ctx context.Context, projectName string, job *models.ReportJob, notes []models.Note) (models.SummarizeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.InferenceTimeout)
	defer cancel()

	return r.ai.Summarize(ctx, models.SummarizeRequest{
		ProjectName:  projectName,
		PeriodStart:  job.PeriodStart,
		PeriodEnd:    job.PeriodEnd,
		Notes:        notes,
		MaxWords:     r.opts.MaxSummaryWords,
		MaxPhotoDays: r.opts.MaxPhotoDays,
	})
}

// selectFinal asks the ranker for final image ids and defensively drops any
// id that is not actually a candidate. Output keeps candidate order.
func (r *Runner) selectFinal(ctx context.Context, bullets []string, candidates []models.CandidateImage) ([]models.CandidateImage, error) {
	if len(candidates) == 0 {
		return []models.CandidateImage{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.InferenceTimeout)
	defer cancel()

	ids, err := r.ai.SelectImages(ctx, models.SelectImagesRequest{
		Bullets:    bullets,
		Candidates: candidates,
		MaxImages:  r.opts.MaxImages,
	})
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	final := make([]models.CandidateImage, 0, r.opts.MaxImages)
	for _, c := range candidates {
		if wanted[c.ID] && len(final) < r.opts.MaxImages {
			final = append(final, c)
		}
	}
	return final, nil
}

func (r *Runner) caption(ctx context.Context, images []models.CandidateImage, bullets []string) (map[string]string, error) {
	if len(images) == 0 {
		return map[string]string{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.InferenceTimeout)
	defer cancel()

	captions, err := r.ai.Caption(ctx, models.CaptionRequest{
		Images:  images,
		Summary: strings.Join(bullets, "\n"),
	})
	if err != nil {
		return nil, err
	}
	if captions == nil {
		captions = map[string]string{}
	}
	return captions, nil
}

func buildSpec(project *models.Project, job *models.ReportJob, summary models.SummarizeResult,
	final []models.CandidateImage, captions map[string]string, localPaths map[string]string) models.ReportSpec {

	images := make([]models.SelectedImage, 0, len(final))
	for _, img := range final {
		caption := captions[img.ID]
		if caption == "" {
			caption = fallbackCaption
		}
		images = append(images, models.SelectedImage{
			ID:          img.ID,
			TakenOn:     img.TakenOn,
			Description: img.Description,
			Filename:    img.Filename,
			Caption:     caption,
			LocalPath:   localPaths[img.ID],
		})
	}

	return models.ReportSpec{
		ProjectID:      project.ID,
		ProjectName:    project.Name,
		PeriodStart:    job.PeriodStart,
		PeriodEnd:      job.PeriodEnd,
		SummaryBullets: summary.Bullets,
		PhotoDays:      summary.PhotoDays,
		Images:         images,
	}
}

// fail classifies the stage error and performs the single terminal store
// write. Validation messages pass through verbatim; everything else gets the
// generic message and the original error stays in the logs.
func (r *Runner) fail(ctx context.Context, jobID uuid.UUID, stageErr error) error {
	message := GenericFailureMessage
	var verr *ValidationError
	if errors.As(stageErr, &verr) {
		message = verr.Message
	}

	slog.Error("report pipeline failed", "job_id", jobID, "error", stageErr)

	if err := r.store.MarkFailed(ctx, jobID, message); err != nil {
		slog.Error("marking job failed errored; job remains processing",
			"job_id", jobID, "error", err)
	}
	return stageErr
}
