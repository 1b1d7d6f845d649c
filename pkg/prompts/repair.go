package prompts

import (
	"fmt"
	"strings"
)

// RepairInput is a failed query and the diagnostic the store returned for it.
type RepairInput struct {
	Question    string
	Schema      string
	FailedQuery string
	StoreError  string
}

// BuildRepairPrompt asks the model to correct a query the store rejected.
func BuildRepairPrompt(in RepairInput) string {
	var prompt strings.Builder

	prompt.WriteString("You are a Neo4j Cypher expert. The query below failed. Return a corrected read-only query.\n\n")

	prompt.WriteString("## Graph Schema\n\n")
	prompt.WriteString(in.Schema)
	if !strings.HasSuffix(in.Schema, "\n") {
		prompt.WriteString("\n")
	}
	prompt.WriteString("\n")

	prompt.WriteString("## Question\n\n")
	prompt.WriteString(in.Question)
	prompt.WriteString("\n\n")

	prompt.WriteString("## Failed Query\n\n")
	prompt.WriteString(in.FailedQuery)
	prompt.WriteString("\n\n")

	prompt.WriteString("## Database Error\n\n")
	prompt.WriteString(fmt.Sprintf("%s\n\n", in.StoreError))

	writeRules(&prompt)
	prompt.WriteString("\nCorrected Cypher query:\n")
	return prompt.String()
}
