package flows

func validScenarioPayload() map[string]any {
	return map[string]any{
		"content":         "The space station logs asteroid sizes. Return how many asteroids are larger than the shield limit.",
		"primary_concept": "arrays",
		"hints": []string{
			"Look at every asteroid once.",
			"A single pass with a counter is enough.",
			"Loop over the sizes and increment the counter when size > limit.",
		},
		"test_cases": []map[string]any{
			{"input": "[3,9,1], 2", "output": "2", "is_edge_case": false, "explanation": "3 and 9 exceed 2"},
			{"input": "[5,5,5], 5", "output": "0", "is_edge_case": false, "explanation": "equal sizes pass the shield"},
			{"input": "[10], 1", "output": "1", "is_edge_case": false, "explanation": "one large asteroid"},
			{"input": "[], 4", "output": "0", "is_edge_case": true, "explanation": "no asteroids"},
		},
	}
}

func assessmentPayloadFixture(isCorrect bool, score int) map[string]any {
	return map[string]any{
		"is_correct": isCorrect,
		"score":      score,
		"feedback":   "The loop handles the main cases; check the empty input.",
	}
}
