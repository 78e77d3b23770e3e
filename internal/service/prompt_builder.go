package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/noah-isme/rubiai-api/internal/models"
	"github.com/noah-isme/rubiai-api/pkg/extract"
)

const promptOutputSchema = `{
  "overallScore": {
    "points": <total_points_earned>,
    "total": 100,
    "percentage": <percentage_score>,
    "grade": "<letter_grade>"
  },
  "criteriaScores": [
    {
      "criterion": "<criterion_name>",
      "weight": <weight_percentage>,
      "score": <points_earned>,
      "maxScore": <max_points>,
      "percentage": <criterion_percentage>,
      "status": "<excellent|good|fair|poor>",
      "feedback": "<detailed_feedback>"
    }
  ],
  "aiInsights": {
    "strengths": ["<strength1>", "<strength2>", ...],
    "improvements": ["<improvement1>", "<improvement2>", ...],
    "summary": "<overall_summary>"
  }
}`

const imageContentNotice = "Image content - analyze the visual flowchart/algorithm/pseudocode"

var typeInstructions = map[string]string{
	models.RubricTypeFlowchart:  "Focus on flowchart symbols, flow direction, decision logic, and overall algorithm structure.",
	models.RubricTypeAlgorithm:  "Evaluate the algorithm for correctness, efficiency, and adherence to best practices.",
	models.RubricTypePseudocode: "Focus on the logical structure and problem-solving approach, independent of specific programming languages.",
}

// RubricResolver yields the rubric used to grade a rubric type.
type RubricResolver interface {
	ResolveForType(ctx context.Context, rubricType string) (models.Rubric, bool)
}

// PromptBuilder turns a rubric and extracted content into a single evaluation prompt.
type PromptBuilder struct {
	rubrics RubricResolver
}

// NewPromptBuilder constructs a prompt builder backed by the rubric store.
func NewPromptBuilder(rubrics RubricResolver) *PromptBuilder {
	return &PromptBuilder{rubrics: rubrics}
}

// Build returns the prompt and the rubric it was built from.
func (b *PromptBuilder) Build(ctx context.Context, rubricType string, content extract.Content) (string, models.Rubric, error) {
	rubric, ok := b.rubrics.ResolveForType(ctx, rubricType)
	if !ok {
		return "", models.Rubric{}, fmt.Errorf("%w: no active rubric of type %q", ErrRubricNotFound, rubricType)
	}
	return BuildPrompt(rubric, rubricType, content), rubric, nil
}

// BuildPrompt renders the evaluation prompt for rubric and content.
func BuildPrompt(rubric models.Rubric, rubricType string, content extract.Content) string {
	var b strings.Builder

	b.WriteString("You are an expert evaluator for computational thinking and algorithm design.\n")
	fmt.Fprintf(&b, "Analyze the provided %s and provide a comprehensive evaluation.\n\n", rubricType)

	b.WriteString("RUBRIC CRITERIA:\n")
	for i, criterion := range rubric.Criteria {
		fmt.Fprintf(&b, "%d. %s (%s%%): %s\n", i+1, criterion.Name, formatWeight(criterion.Weight), criterion.Description)
	}

	b.WriteString("\nEVALUATION INSTRUCTIONS:\n")
	b.WriteString(instructionsFor(rubric, rubricType))
	b.WriteString("\n\n")

	b.WriteString("Please provide your evaluation in the following JSON format:\n")
	b.WriteString(promptOutputSchema)
	b.WriteString("\n\nCONTENT TO EVALUATE:\n")
	if content.HasImage() || content.Text == "" {
		b.WriteString(imageContentNotice)
	} else {
		b.WriteString(content.Text)
	}

	return b.String()
}

func instructionsFor(rubric models.Rubric, rubricType string) string {
	base := typeInstructions[rubricType]
	description := strings.TrimSpace(rubric.Description)

	switch {
	case base == "" && description == "":
		return fmt.Sprintf("Evaluate based on the custom %s rubric criteria defined by the user.", rubricType)
	case base == "":
		return description
	case description == "":
		return base
	default:
		return base + "\nRubric focus: " + description
	}
}

func formatWeight(weight float64) string {
	return strconv.FormatFloat(weight, 'f', -1, 64)
}
