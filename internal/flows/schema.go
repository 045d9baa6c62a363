package flows

import "github.com/noah-isme/algogenius-api/pkg/ai"

func stringProp(description string) map[string]any {
	return map[string]any{"type": "string", "description": description}
}

// ScenarioSchema is the output contract of the scenario generator.
var ScenarioSchema = &ai.Schema{
	Name:        "dsa-scenario",
	Description: "A themed programming problem with progressive hints and test cases",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"content":         stringProp("The full problem statement told as a story in the requested theme"),
			"primary_concept": stringProp("The single concept the problem exercises, copied verbatim from the given concept list"),
			"hints": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"minItems":    3,
				"maxItems":    3,
				"description": "Exactly 3 hints, from a gentle nudge to an almost complete approach",
			},
			"test_cases": map[string]any{
				"type":     "array",
				"minItems": 4,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"input":        stringProp("Literal input passed to the solution"),
						"output":       stringProp("Expected output for the input"),
						"is_edge_case": map[string]any{"type": "boolean", "description": "True for empty, boundary or degenerate inputs"},
						"explanation":  stringProp("Why the output is expected"),
					},
					"required":             []any{"input", "output", "is_edge_case", "explanation"},
					"additionalProperties": false,
				},
				"description": "At least 4 test cases, at least one of them an edge case",
			},
		},
		"required":             []any{"content", "primary_concept", "hints", "test_cases"},
		"additionalProperties": false,
	},
}

// AssessmentSchema is the output contract of the code assessment evaluator.
var AssessmentSchema = &ai.Schema{
	Name:        "code-assessment",
	Description: "Correctness verdict, score and feedback for a code submission",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"is_correct": map[string]any{"type": "boolean", "description": "Whether the code solves the problem for every test case"},
			"score":      map[string]any{"type": "integer", "description": "Score from 0 to 100 following the rubric"},
			"feedback":   stringProp("Actionable feedback addressed to the student"),
		},
		"required":             []any{"is_correct", "score", "feedback"},
		"additionalProperties": false,
	},
}

// GoalSchema is the output contract of the goal update agent.
var GoalSchema = &ai.Schema{
	Name:        "learning-goal",
	Description: "The next measurable learning goal for a student",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"next_goal":       stringProp("One or two sentences naming the concept, the target score and the difficulty"),
			"weakest_concept": stringProp("The concept the goal targets"),
			"recommended_difficulty": map[string]any{
				"type": "string",
				"enum": []any{"Easy", "Medium", "Hard"},
			},
		},
		"required":             []any{"next_goal", "weakest_concept", "recommended_difficulty"},
		"additionalProperties": false,
	},
}

// QuizSchema is the output contract of the quiz generator.
var QuizSchema = &ai.Schema{
	Name:        "concept-quiz",
	Description: "Multiple choice questions about one concept",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question": stringProp("The question text"),
						"options": map[string]any{
							"type":     "array",
							"items":    map[string]any{"type": "string"},
							"minItems": 4,
							"maxItems": 4,
						},
						"answer_index": map[string]any{"type": "integer", "description": "Zero based index of the correct option"},
						"explanation":  stringProp("Why the correct option is right"),
					},
					"required":             []any{"question", "options", "answer_index", "explanation"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"questions"},
		"additionalProperties": false,
	},
}

// StudyPlanSchema is the output contract of the study plan generator.
var StudyPlanSchema = &ai.Schema{
	Name:        "study-plan",
	Description: "A week by week study plan",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary": stringProp("One paragraph overview of the plan"),
			"weeks": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"week":  map[string]any{"type": "integer"},
						"focus": stringProp("Concept or skill practiced that week"),
						"activities": map[string]any{
							"type":     "array",
							"items":    map[string]any{"type": "string"},
							"minItems": 1,
						},
						"milestone": stringProp("Measurable outcome for the end of the week"),
					},
					"required":             []any{"week", "focus", "activities", "milestone"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"summary", "weeks"},
		"additionalProperties": false,
	},
}

// Schemas lists every flow output contract.
var Schemas = []*ai.Schema{ScenarioSchema, AssessmentSchema, GoalSchema, QuizSchema, StudyPlanSchema}
