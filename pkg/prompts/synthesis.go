package prompts

import (
	"fmt"
	"strings"
)

// Reference is an external search hit offered to the model as context.
type Reference struct {
	Title   string
	URL     string
	Snippet string
}

// SynthesisInput carries the results a summary is written from.
type SynthesisInput struct {
	Question   string
	Query      string
	TotalRows  int
	SampleRows int
	Table      string // markdown table of the sampled rows
	References []Reference
}

// BuildSynthesisPrompt creates the prompt for the markdown answer summary.
func BuildSynthesisPrompt(in SynthesisInput) string {
	var prompt strings.Builder

	prompt.WriteString("Analyze the following research grant query results and write a structured markdown summary.\n\n")
	prompt.WriteString(fmt.Sprintf("Question: %s\n", in.Question))
	prompt.WriteString(fmt.Sprintf("Query: %s\n", in.Query))
	prompt.WriteString(fmt.Sprintf("Total results: %d\n\n", in.TotalRows))

	if in.TotalRows == 0 {
		prompt.WriteString("The query returned no results. Say so plainly and suggest how the question could be broadened.\n\n")
	} else {
		if in.SampleRows < in.TotalRows {
			prompt.WriteString(fmt.Sprintf("## Results (first %d of %d)\n\n", in.SampleRows, in.TotalRows))
		} else {
			prompt.WriteString("## Results\n\n")
		}
		prompt.WriteString(in.Table)
		prompt.WriteString("\n\n")
	}

	if len(in.References) > 0 {
		prompt.WriteString("## Web Context\n\n")
		for i, ref := range in.References {
			prompt.WriteString(fmt.Sprintf("%d. %s (%s)", i+1, ref.Title, ref.URL))
			if ref.Snippet != "" {
				prompt.WriteString(fmt.Sprintf(": %s", ref.Snippet))
			}
			prompt.WriteString("\n")
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Format\n\n")
	prompt.WriteString("Start with a blockquote title line: \"> Grant Analysis: <question>\".\n")
	prompt.WriteString("Then use these sections: \"## Overview\", \"## Grants\", \"## Key Research Themes\".\n")
	prompt.WriteString("Under Grants list each grant as: 1. **Title** (ID: application id, Funder: funding body, $Amount, Year): one-line purpose.\n")
	if len(in.References) > 0 {
		prompt.WriteString("End with \"## References\" listing the web context as markdown links.\n")
	}
	prompt.WriteString("\nIMPORTANT:\n")
	prompt.WriteString("- Use only the data above. Do not invent grants, amounts or links.\n")
	prompt.WriteString("- Format currency with thousands separators, for example $1,200,000.\n")
	return prompt.String()
}
