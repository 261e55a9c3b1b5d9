// Package mcp exposes the job manager as MCP tools (§6, Supplemented
// Features): analyze_repo, get_status, and get_result, so an MCP client
// drives the exact same Manager.Submit/Status/Result entry points an
// HTTP adapter would, including their response-memoization cache.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/codescope-dev/codescope/pkg/cache"
	"github.com/codescope-dev/codescope/pkg/job"
	"github.com/codescope-dev/codescope/pkg/model"
	"github.com/codescope-dev/codescope/pkg/persist"
)

const (
	serverName    = "codescope"
	serverVersion = "0.1.0"
)

// Server wires a Manager and a blob Codec into an MCP server. Every
// read tool goes through the Manager's cached Status/Result accessors
// rather than a ProjectStore/JobStore directly, so repeated get_status
// polling from an MCP client shares the same memoization the CLI does.
type Server struct {
	Manager *job.Manager
	Codec   persist.BlobCodec
	Logger  *slog.Logger

	reports *cache.ReportCache
}

// NewServer returns a Server; codec defaults to persist.NewLZ4JSONCodec
// when nil. reportCacheBytes sizes the decoded-report cache (<= 0 falls
// back to its own default); the cache is always on, since a completed
// project's ReportBlob never changes and there is no staleness tradeoff
// to expose as an option the way there is for Manager's TTL caches.
func NewServer(manager *job.Manager, codec persist.BlobCodec, logger *slog.Logger, reportCacheBytes int64) *Server {
	if codec == nil {
		codec = persist.NewLZ4JSONCodec()
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Server{Manager: manager, Codec: codec, Logger: logger, reports: cache.NewReportCache(reportCacheBytes)}
}

// Build registers the three tools on a fresh *sdk.Server, ready for
// Run(ctx, transport).
func (s *Server) Build() *sdk.Server {
	srv := sdk.NewServer(&sdk.Implementation{Name: serverName, Version: serverVersion}, nil)

	sdk.AddTool(srv, &sdk.Tool{
		Name:        "analyze_repo",
		Description: "Submit a git repository for a Codescope quality scorecard analysis and return its project and job ids.",
	}, s.analyzeRepo)

	sdk.AddTool(srv, &sdk.Tool{
		Name:        "get_status",
		Description: "Check the progress and stage of a previously submitted analysis job.",
	}, s.getStatus)

	sdk.AddTool(srv, &sdk.Tool{
		Name:        "get_result",
		Description: "Fetch the completed scorecard for a project: scores, verdict, and feedback.",
	}, s.getResult)

	return srv
}

// AnalyzeRepoInput is analyze_repo's argument.
type AnalyzeRepoInput struct {
	RepoURL   string `json:"repo_url" jsonschema:"the git URL to clone and analyze"`
	TeamLabel string `json:"team_label,omitempty" jsonschema:"optional label identifying the submitting team"`
}

// AnalyzeRepoOutput is analyze_repo's result.
type AnalyzeRepoOutput struct {
	ProjectID string `json:"project_id"`
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
}

func (s *Server) analyzeRepo(ctx context.Context, _ *sdk.CallToolRequest, in AnalyzeRepoInput) (*sdk.CallToolResult, AnalyzeRepoOutput, error) {
	if in.RepoURL == "" {
		return nil, AnalyzeRepoOutput{}, fmt.Errorf("repo_url is required")
	}

	project, j, err := s.Manager.Submit(ctx, in.RepoURL, in.TeamLabel)
	if err != nil {
		return nil, AnalyzeRepoOutput{}, err
	}

	return nil, AnalyzeRepoOutput{
		ProjectID: project.ID,
		JobID:     j.ID,
		Status:    string(j.Status),
	}, nil
}

// GetStatusInput is get_status's argument.
type GetStatusInput struct {
	JobID string `json:"job_id" jsonschema:"the job id returned by analyze_repo"`
}

// GetStatusOutput is get_status's result.
type GetStatusOutput struct {
	Status       string `json:"status"`
	Stage        string `json:"stage"`
	Progress     int    `json:"progress"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (s *Server) getStatus(ctx context.Context, _ *sdk.CallToolRequest, in GetStatusInput) (*sdk.CallToolResult, GetStatusOutput, error) {
	j, err := s.Manager.Status(ctx, in.JobID)
	if err != nil {
		return nil, GetStatusOutput{}, err
	}

	return nil, GetStatusOutput{
		Status:       string(j.Status),
		Stage:        j.Stage,
		Progress:     j.Progress,
		ErrorMessage: j.ErrorMessage,
	}, nil
}

// GetResultInput is get_result's argument.
type GetResultInput struct {
	ProjectID string `json:"project_id" jsonschema:"the project id returned by analyze_repo"`
}

// GetResultOutput is get_result's result: the scorecard plus the full
// detector report, when the project has completed.
type GetResultOutput struct {
	Status        string        `json:"status"`
	Scores        *model.Scores `json:"scores,omitempty"`
	TotalCommits  int           `json:"total_commits"`
	Verdict       string        `json:"verdict,omitempty"`
	Report        *model.Report `json:"report,omitempty"`
}

func (s *Server) getResult(ctx context.Context, _ *sdk.CallToolRequest, in GetResultInput) (*sdk.CallToolResult, GetResultOutput, error) {
	project, err := s.Manager.Result(ctx, in.ProjectID)
	if err != nil {
		return nil, GetResultOutput{}, err
	}

	out := GetResultOutput{
		Status:       string(project.Status),
		Scores:       project.Scores,
		TotalCommits: project.TotalCommits,
		Verdict:      project.Verdict,
	}

	if project.Status != model.ProjectCompleted || len(project.ReportBlob) == 0 {
		return nil, out, nil
	}

	if cached, ok := s.reports.Get(project.ID); ok {
		out.Report = cached

		return nil, out, nil
	}

	var report model.Report
	if err := s.Codec.Decode(project.ReportBlob, &report); err != nil {
		return nil, out, fmt.Errorf("decode report blob: %w", err)
	}

	s.reports.Put(project.ID, &report, len(project.ReportBlob))
	out.Report = &report

	return nil, out, nil
}
