package ai

import (
	"fmt"
	"strings"

	"github.com/trama-ai/trama/pkg/common"
)

// EntityTypes is the controlled vocabulary the analysis prompts allow.
var EntityTypes = []string{
	"PERSON",
	"LOCATION",
	"ORGANIZATION",
	"DATE",
	"EVENT",
	"CREATIVE_WORK",
	"CONCEPT",
}

// AnalysisSystemPrompt is prepended to every analysis request.
const AnalysisSystemPrompt = `You are a precise text-analysis engine. You return a single valid JSON object and nothing else: no commentary, no markdown fences, no text before or after the JSON.`

const EntitiesPromptText = `
# Task Context
You extract named entities from the text segment below.

# Detailed Task Description & Rules
- Identify every entity of the allowed types that the segment explicitly mentions.
- For each entity report:
  - **text:** the exact surface form as it appears in the segment, character for character.
  - **type:** one of the allowed entity types.
  - **start / end:** 0-based character offsets into the segment, end exclusive, such that segment[start:end] equals the text field.
  - **confidence:** your confidence in the extraction, between 0 and 1.
- Do not invent entities that the segment does not mention.
- If the segment contains no entities, return an empty entities array.

# Background Data
- Allowed entity types: [%s]

# Output Formatting
Return a single JSON object with this structure:
{
  "entities": [
    {"text": "...", "type": "...", "start": 0, "end": 0, "confidence": 0.0}
  ],
  "relations": []
}

# Text Segment
%s
`

const RelationsPromptText = `
# Task Context
You extract subject-predicate-object relations from the text segment below.

# Detailed Task Description & Rules
- Identify every relation the segment explicitly states between two entities.
- For each relation report:
  - **subject / object:** the exact surface forms of the two entities.
  - **predicate:** the verb phrase connecting them, as close to the segment's wording as possible (e.g. "born in", "lived in", "painted").
  - **confidence:** your confidence in the extraction, between 0 and 1.
  - **context:** the sentence the relation was found in.
- Do not infer relations the segment does not state.
- If the segment contains no relations, return an empty relations array.

# Background Data
- Allowed entity types for subjects and objects: [%s]

# Output Formatting
Return a single JSON object with this structure:
{
  "entities": [],
  "relations": [
    {"subject": "...", "predicate": "...", "object": "...", "confidence": 0.0, "context": "..."}
  ]
}

# Text Segment
%s
`

const BothPromptText = `
# Task Context
You extract named entities and subject-predicate-object relations from the text segment below.

# Detailed Task Description & Rules
- Identify every entity of the allowed types that the segment explicitly mentions.
- For each entity report:
  - **text:** the exact surface form as it appears in the segment, character for character.
  - **type:** one of the allowed entity types.
  - **start / end:** 0-based character offsets into the segment, end exclusive, such that segment[start:end] equals the text field.
  - **confidence:** your confidence in the extraction, between 0 and 1.
- Identify every relation the segment explicitly states between two entities.
- For each relation report:
  - **subject / object:** the exact surface forms of the two entities.
  - **predicate:** the verb phrase connecting them, as close to the segment's wording as possible.
  - **confidence:** your confidence in the extraction, between 0 and 1.
  - **context:** the sentence the relation was found in.
- Do not invent entities or relations that the segment does not mention.
- Use empty arrays when nothing is found.

# Background Data
- Allowed entity types: [%s]

# Output Formatting
Return a single JSON object with this structure:
{
  "entities": [
    {"text": "...", "type": "...", "start": 0, "end": 0, "confidence": 0.0}
  ],
  "relations": [
    {"subject": "...", "predicate": "...", "object": "...", "confidence": 0.0, "context": "..."}
  ]
}

# Text Segment
%s
`

// PromptFor builds the analysis prompt for one text segment.
func PromptFor(kind common.AnalysisKind, text string) string {
	types := strings.Join(EntityTypes, ", ")
	switch kind {
	case common.KindEntities:
		return fmt.Sprintf(EntitiesPromptText, types, text)
	case common.KindRelations:
		return fmt.Sprintf(RelationsPromptText, types, text)
	default:
		return fmt.Sprintf(BothPromptText, types, text)
	}
}
