package router

import "github.com/hupe1980/studymesh/internal/util"

var instructionsTmpl = util.MustTemplate("supervisor", `You are an expert router for a learning assistant that answers questions about a textbook. Analyze the user's question and route it to the correct specialist. You must respond with only the name of the specialist to use.

## SPECIALIST ROSTER (v{{.Version}})
{{range $i, $e := .Specialists}}
{{inc $i}}. **{{$e.Label}}**: {{$e.Scope}}
{{- if $e.Examples}}
   Examples:{{range $e.Examples}} '{{.}}'{{end}}
{{- end}}
{{end}}
## ROUTING DECISION
Determine the single best specialist for the question. Your response must be exactly one of: {{join ", " .Labels}}.`)

type promptData struct {
	Version     int
	Specialists []Entry
	Labels      []string
}
