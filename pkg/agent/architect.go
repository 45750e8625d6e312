package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/codeready-toolchain/agentrt/pkg/apperrors"
	"github.com/codeready-toolchain/agentrt/pkg/models"
	"github.com/google/uuid"
)

const planningPromptTemplate = `You are an expert software architect. Analyze this task and break it down into concrete, executable subtasks.

Task: %s

Context: %s

Requirements:
1. Each subtask must be concrete and actionable
2. Assign each subtask to the appropriate agent:
   - "coder": For code changes, file creation, implementation
   - "debug": For troubleshooting, fixing bugs, investigating issues
   - "ask": For answering questions, providing explanations
3. NEVER assign subtasks to "architect" - architect only creates plans
4. Specify dependencies by index (0-based) if subtasks depend on each other
5. Provide realistic time estimates

Respond with JSON only:
{
  "reasoning": "Brief explanation of the decomposition strategy",
  "subtasks": [
    {
      "description": "Clear description of what to do",
      "agent": "coder",
      "dependencies": [],
      "estimated_time": "5 min"
    }
  ]
}

JSON response:`

var validSubtaskAgents = map[string]bool{"coder": true, "debug": true, "ask": true}

type planAnalysis struct {
	Reasoning string        `json:"reasoning"`
	Subtasks  []planSubtask `json:"subtasks"`
}

type planSubtask struct {
	Description   string `json:"description"`
	Agent         string `json:"agent"`
	Dependencies  []int  `json:"dependencies"`
	EstimatedTime string `json:"estimated_time"`
}

// PlanRepo is the persistence contract the architect needs.
type PlanRepo interface {
	FindByID(ctx context.Context, planID string) (models.ExecutionPlan, error)
	Save(ctx context.Context, plan models.ExecutionPlan, commit bool) error
}

// Architect decomposes a goal into a subtask dependency DAG and
// persists it as a draft ExecutionPlan.
type Architect struct {
	plans PlanRepo
	llm   ChatClient
	model string
}

// NewArchitect builds an Architect. A nil llm always falls back to
// keyword-heuristic decomposition.
func NewArchitect(plans PlanRepo, llm ChatClient, model string) *Architect {
	return &Architect{plans: plans, llm: llm, model: model}
}

// CreatePlan analyzes task, validates the resulting decomposition, and
// commits a new draft ExecutionPlan (spec §4.11).
func (a *Architect) CreatePlan(ctx context.Context, conversationID, task string, taskContext map[string]any) (models.ExecutionPlan, error) {
	analysis := a.analyze(ctx, task, taskContext)
	if err := validateAnalysis(analysis); err != nil {
		// Returned unwrapped: spec scenario 4 requires this message
		// verbatim, not dressed up with a "plan creation failed" prefix.
		return models.ExecutionPlan{}, err
	}

	plan := buildPlan(conversationID, task, analysis)
	if err := a.plans.Save(ctx, plan, true); err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("saving plan: %w", err)
	}
	return plan, nil
}

// Replan regenerates an existing plan's subtasks from human feedback,
// keeping its ID and conversation but replacing the subtask list and
// returning it to draft — the architectPlanning re-entry the FSM's
// planModificationRequested edge leads to.
func (a *Architect) Replan(ctx context.Context, planID, feedback string, taskContext map[string]any) (models.ExecutionPlan, error) {
	plan, err := a.plans.FindByID(ctx, planID)
	if err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("loading plan to replan: %w", err)
	}

	task := plan.Goal
	if feedback != "" {
		task = fmt.Sprintf("%s\n\nRevision requested: %s", plan.Goal, feedback)
	}

	analysis := a.analyze(ctx, task, taskContext)
	if err := validateAnalysis(analysis); err != nil {
		return models.ExecutionPlan{}, err
	}

	plan.Subtasks = subtasksFromAnalysis(plan.ID, analysis)
	plan.Status = models.PlanStatusDraft
	if err := a.plans.Save(ctx, plan, true); err != nil {
		return models.ExecutionPlan{}, fmt.Errorf("saving replanned plan: %w", err)
	}
	return plan, nil
}

func (a *Architect) analyze(ctx context.Context, task string, taskContext map[string]any) planAnalysis {
	if a.llm == nil {
		slog.Warn("architect has no LLM client configured, using heuristic decomposition")
		return heuristicDecomposition(task)
	}

	contextJSON := "None"
	if len(taskContext) > 0 {
		if raw, err := json.MarshalIndent(taskContext, "", "  "); err == nil {
			contextJSON = string(raw)
		}
	}

	content, err := a.llm.Complete(ctx, a.model, []ChatMessage{
		{Role: "system", Content: "You are an expert software architect."},
		{Role: "user", Content: fmt.Sprintf(planningPromptTemplate, task, contextJSON)},
	})
	if err != nil {
		slog.Warn("architect LLM call failed, falling back to heuristic decomposition", "error", err)
		return heuristicDecomposition(task)
	}

	var analysis planAnalysis
	if err := json.Unmarshal([]byte(extractJSON(content)), &analysis); err != nil {
		slog.Warn("architect response failed to parse as JSON, falling back to heuristic decomposition", "error", err)
		return heuristicDecomposition(task)
	}
	return analysis
}

// heuristicDecomposition is the keyword fallback used when the LLM call
// or JSON parse fails: one coder subtask, plus an optional debug
// verification subtask depending on it.
func heuristicDecomposition(task string) planAnalysis {
	lower := strings.ToLower(task)

	description := task
	if containsAny(lower, "create", "implement", "add", "build") {
		description = "Implement: " + task
	}
	subtasks := []planSubtask{{
		Description:   description,
		Agent:         "coder",
		EstimatedTime: "10 min",
	}}
	if containsAny(lower, "test", "verify", "check") {
		subtasks = append(subtasks, planSubtask{
			Description:   "Test and verify: " + task,
			Agent:         "debug",
			Dependencies:  []int{0},
			EstimatedTime: "5 min",
		})
	}

	return planAnalysis{Reasoning: "heuristic decomposition (LLM unavailable)", Subtasks: subtasks}
}

// validateAnalysis enforces spec §4.11's exact rules against an
// analysis whose dependency indices are still the LLM's raw 0-based
// indices (pre-ID-allocation).
func validateAnalysis(analysis planAnalysis) error {
	if len(analysis.Subtasks) == 0 {
		return &apperrors.PlanError{Reason: "analysis has no subtasks"}
	}
	for i, st := range analysis.Subtasks {
		if st.Description == "" {
			return &apperrors.PlanError{Reason: fmt.Sprintf("subtask %d missing description", i)}
		}
		if st.Agent == "" {
			return &apperrors.PlanError{Reason: fmt.Sprintf("subtask %d missing agent", i)}
		}
		if st.Agent == "architect" {
			return &apperrors.PlanError{Reason: fmt.Sprintf("subtask %d assigned to architect, which cannot execute subtasks", i)}
		}
		if !validSubtaskAgents[st.Agent] {
			return &apperrors.PlanError{Reason: fmt.Sprintf("subtask %d has invalid agent: %q", i, st.Agent)}
		}
		for _, dep := range st.Dependencies {
			if dep < 0 || dep >= i {
				return &apperrors.DependencyIndexError{Subtask: i, Index: dep}
			}
		}
	}
	return nil
}

// buildPlan allocates a plan ID and per-subtask IDs and rewrites the
// analysis's 0-based indices into plan positions (1-based, matching
// pkg/plandag's convention).
func buildPlan(conversationID, goal string, analysis planAnalysis) models.ExecutionPlan {
	planID := uuid.New().String()
	return models.ExecutionPlan{
		ID:             planID,
		ConversationID: conversationID,
		Goal:           goal,
		Status:         models.PlanStatusDraft,
		Subtasks:       subtasksFromAnalysis(planID, analysis),
		CreatedAt:      time.Now().UTC(),
	}
}

func subtasksFromAnalysis(planID string, analysis planAnalysis) []models.Subtask {
	subtasks := make([]models.Subtask, len(analysis.Subtasks))
	for i, s := range analysis.Subtasks {
		deps := make([]int, len(s.Dependencies))
		for j, d := range s.Dependencies {
			deps[j] = d + 1
		}
		subtasks[i] = models.Subtask{
			ID:           uuid.New().String(),
			PlanID:       planID,
			Position:     i + 1,
			Description:  s.Description,
			Agent:        s.Agent,
			Dependencies: deps,
			Status:       models.SubtaskPending,
		}
	}
	return subtasks
}
