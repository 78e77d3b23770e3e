package models

import "time"

var defaultRubricCreatedAt = time.Date(2025, time.October, 20, 0, 0, 0, 0, time.UTC)

// DefaultRubrics returns the built-in rubrics seeded on first run and used when
// no active rubric of a type exists. Each call returns fresh copies.
func DefaultRubrics() []Rubric {
	return []Rubric{
		{
			ID:           "1",
			Name:         "Flowchart Evaluation",
			Description:  "Comprehensive evaluation criteria for flowchart analysis",
			Type:         RubricTypeFlowchart,
			Status:       RubricStatusActive,
			CreatedAt:    defaultRubricCreatedAt,
			LastModified: time.Date(2025, time.October, 28, 0, 0, 0, 0, time.UTC),
			Criteria: []Criterion{
				{ID: "1-1", Position: 0, Name: "Clarity & Readability", Weight: 20, Description: "Symbol usage, labeling, formatting, and overall visual clarity"},
				{ID: "1-2", Position: 1, Name: "Logical Flow", Weight: 25, Description: "Sequence correctness, decision points, and loop structures"},
				{ID: "1-3", Position: 2, Name: "Completeness", Weight: 20, Description: "Essential elements, edge cases, and error handling coverage"},
				{ID: "1-4", Position: 3, Name: "Syntax & Standards", Weight: 15, Description: "Convention adherence and proper symbol usage"},
				{ID: "1-5", Position: 4, Name: "Efficiency & Optimization", Weight: 20, Description: "Structure optimization and redundancy elimination"},
			},
		},
		{
			ID:           "2",
			Name:         "Algorithm Evaluation",
			Description:  "Detailed assessment criteria for algorithm implementation",
			Type:         RubricTypeAlgorithm,
			Status:       RubricStatusActive,
			CreatedAt:    defaultRubricCreatedAt,
			LastModified: time.Date(2025, time.October, 25, 0, 0, 0, 0, time.UTC),
			Criteria: []Criterion{
				{ID: "2-1", Position: 0, Name: "Clarity & Readability", Weight: 20, Description: "Code structure, naming conventions, and documentation"},
				{ID: "2-2", Position: 1, Name: "Logical Correctness", Weight: 25, Description: "Algorithm logic validity and edge case handling"},
				{ID: "2-3", Position: 2, Name: "Completeness", Weight: 20, Description: "All required functionality and comprehensive error handling"},
				{ID: "2-4", Position: 3, Name: "Efficiency", Weight: 15, Description: "Time and space complexity optimization"},
				{ID: "2-5", Position: 4, Name: "Best Practices", Weight: 20, Description: "Coding standards adherence and maintainability"},
			},
		},
		{
			ID:           "3",
			Name:         "Pseudocode Evaluation",
			Description:  "Assessment framework for pseudocode quality and structure",
			Type:         RubricTypePseudocode,
			Status:       RubricStatusActive,
			CreatedAt:    defaultRubricCreatedAt,
			LastModified: defaultRubricCreatedAt,
			Criteria: []Criterion{
				{ID: "3-1", Position: 0, Name: "Clarity & Structure", Weight: 20, Description: "Clear syntax and proper indentation patterns"},
				{ID: "3-2", Position: 1, Name: "Logical Flow", Weight: 25, Description: "Step-by-step logic and control structure usage"},
				{ID: "3-3", Position: 2, Name: "Completeness", Weight: 20, Description: "All necessary steps, initialization, and termination"},
				{ID: "3-4", Position: 3, Name: "Language Independence", Weight: 15, Description: "Generic constructs and clear operation descriptions"},
				{ID: "3-5", Position: 4, Name: "Problem Solving", Weight: 20, Description: "Approach effectiveness and edge case consideration"},
			},
		},
	}
}

// DefaultRubricForType returns the built-in rubric for rubricType, if one ships.
func DefaultRubricForType(rubricType string) (Rubric, bool) {
	for _, rubric := range DefaultRubrics() {
		if rubric.Type == rubricType {
			return rubric, true
		}
	}
	return Rubric{}, false
}
