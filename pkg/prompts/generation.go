// Package prompts builds the LLM prompts for query generation, repair and
// answer synthesis.
package prompts

import (
	"fmt"
	"strings"
)

// Example is a question paired with the query that answers it.
type Example struct {
	Question string
	Query    string
}

const grantColumns = "g.title AS grant_title, g.grant_status AS status, g.amount AS amount, " +
	"g.start_year AS start_year, g.funding_body AS funding_body, g.application_id AS application_id"

// DefaultExamples are the few-shot pairs included in every generation prompt.
var DefaultExamples = []Example{
	{
		Question: "grants about cancer",
		Query: "MATCH (g:Grant) WHERE toLower(g.title) CONTAINS 'cancer' OR toLower(g.description) CONTAINS 'cancer' " +
			"OPTIONAL MATCH (r:Researcher)-[:PRINCIPAL_INVESTIGATOR]->(g) " +
			"OPTIONAL MATCH (g)-[:HOSTED_BY]->(i:Institution) " +
			"RETURN DISTINCT " + grantColumns + ", r.name AS researcher_name, i.name AS institution_name " +
			"ORDER BY start_year DESC LIMIT 20",
	},
	{
		Question: "grants for Glenn King",
		Query: "MATCH (r:Researcher)-[:PRINCIPAL_INVESTIGATOR|INVESTIGATOR]->(g:Grant) " +
			"WHERE toLower(r.name) IN ['glenn king', 'king, glenn', 'prof glenn king', 'dr glenn king'] " +
			"OPTIONAL MATCH (g)-[:HOSTED_BY]->(i:Institution) " +
			"RETURN DISTINCT " + grantColumns + ", r.name AS researcher_name, i.name AS institution_name " +
			"ORDER BY start_year DESC LIMIT 20",
	},
	{
		Question: "grants over $1M at the University of Queensland since 2020",
		Query: "MATCH (g:Grant)-[:HOSTED_BY]->(i:Institution) " +
			"WHERE g.amount > 1000000 AND g.start_year >= 2020 AND toLower(i.name) CONTAINS 'university of queensland' " +
			"RETURN " + grantColumns + ", i.name AS institution_name " +
			"ORDER BY start_year DESC LIMIT 20",
	},
}

// GenerationInput carries everything the generation prompt needs.
type GenerationInput struct {
	Question string
	Schema   string // Descriptor.PromptText()
	Examples []Example
}

// BuildGenerationPrompt creates the prompt that asks for a single read-only
// Cypher query answering the question.
func BuildGenerationPrompt(in GenerationInput) string {
	var prompt strings.Builder

	prompt.WriteString("You are a Neo4j Cypher expert. Convert the question into one read-only Cypher query.\n\n")

	prompt.WriteString("## Graph Schema\n\n")
	prompt.WriteString(in.Schema)
	if !strings.HasSuffix(in.Schema, "\n") {
		prompt.WriteString("\n")
	}
	prompt.WriteString("\n")

	examples := in.Examples
	if examples == nil {
		examples = DefaultExamples
	}
	if len(examples) > 0 {
		prompt.WriteString("## Examples\n\n")
		for _, ex := range examples {
			prompt.WriteString(fmt.Sprintf("Question: %s\nQuery: %s\n\n", ex.Question, ex.Query))
		}
	}

	if lits := ExtractNumericLiterals(in.Question); len(lits) > 0 {
		prompt.WriteString("## Numeric Values\n\n")
		prompt.WriteString("Use these exact values when comparing numbers from the question:\n")
		for _, l := range lits {
			prompt.WriteString(fmt.Sprintf("- %q means %s\n", l.Text, l.Value))
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("## Question\n\n")
	prompt.WriteString(in.Question)
	prompt.WriteString("\n\n")

	writeRules(&prompt)
	prompt.WriteString("\nCypher query:\n")
	return prompt.String()
}

func writeRules(prompt *strings.Builder) {
	prompt.WriteString("## Rules\n\n")
	prompt.WriteString("1. Return ONLY the Cypher query. No explanation, no markdown.\n")
	prompt.WriteString("2. The query must be read-only: never use CREATE, MERGE, SET, DELETE, REMOVE, DROP or LOAD CSV.\n")
	prompt.WriteString("3. Use only the labels, relationship types and properties listed in the schema.\n")
	prompt.WriteString("4. Order grants by start_year DESC and LIMIT to 20 unless the question asks otherwise.\n")
	prompt.WriteString("5. Match text case-insensitively with toLower() and CONTAINS.\n")
	prompt.WriteString("6. Alias returned columns with readable snake_case names.\n")
}
