package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Operation names the assistant flows; they double as metric labels.
type Operation string

const (
	OpAnalyzeTranscript Operation = "analyze_transcript"
	OpEstimateDealValue Operation = "estimate_deal_value"
	OpRecommendActions  Operation = "recommend_next_actions"
	OpDraftColdEmail    Operation = "draft_cold_email"
	OpDraftLinkedIn     Operation = "draft_linkedin"
	OpDraftFollowUp     Operation = "draft_follow_up"
	OpResearchLead      Operation = "research_lead"
	OpDiscoverLeads     Operation = "discover_leads"
)

// replyFormat is what each flow asks the model to return.
type replyFormat struct {
	preamble string
	example  string
	required []string
	schema   *genai.Schema
}

func str() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
func num() *genai.Schema { return &genai.Schema{Type: genai.TypeNumber} }
func strs() *genai.Schema { return &genai.Schema{Type: genai.TypeArray, Items: str()} }
func integer() *genai.Schema { return &genai.Schema{Type: genai.TypeInteger} }

func object(required []string, props map[string]*genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeObject, Properties: props, Required: required}
}

var formats = map[Operation]replyFormat{
	OpAnalyzeTranscript: {
		preamble: "You are a sales call analyst. Read the call transcript and identify the prospect's overall sentiment, every objection raised and the concrete next steps.",
		example:  `{"sentiment": "positive|neutral|negative", "objections": ["..."], "next_steps": ["..."]}`,
		required: []string{"sentiment", "objections", "next_steps"},
	},
	OpEstimateDealValue: {
		preamble: "You are a B2B sales analyst. Estimate the annual contract value in USD for this lead from the lead record, the conversation history and any transcript provided.",
		example:  `{"estimated_value_usd": 12000, "value_range": {"low": 8000, "high": 15000}, "confidence": 0.6, "signals_used": ["..."]}`,
		required: []string{"estimated_value_usd", "value_range", "confidence", "signals_used"},
	},
	OpRecommendActions: {
		preamble: "You are a sales coach. Given the lead and their most recent interactions (newest first), recommend the next actions the account executive should take.",
		example:  `{"next_actions": ["..."], "priority": "high|medium|low", "reasoning": "..."}`,
		required: []string{"next_actions", "priority", "reasoning"},
	},
	OpDraftColdEmail: {
		preamble: "You are an SDR writing a short, personalised cold email. Keep it under 120 words, one clear call to action, no placeholders.",
		example:  `{"subject": "...", "body": "..."}`,
		required: []string{"subject", "body"},
	},
	OpDraftLinkedIn: {
		preamble: "You are an SDR writing a LinkedIn connection message. Keep it under 300 characters and specific to the lead.",
		example:  `{"message": "..."}`,
		required: []string{"message"},
	},
	OpDraftFollowUp: {
		preamble: "You are an account executive writing a follow-up email that builds on the last interaction with this lead.",
		example:  `{"subject": "...", "body": "..."}`,
		required: []string{"subject", "body"},
	},
	OpResearchLead: {
		preamble: "You are a sales researcher. Summarise what is known about this company or person and score how well they fit our ideal customer profile from 0 to 100.",
		example:  `{"summary": "...", "fit_score": 70, "reasons": ["..."]}`,
		required: []string{"summary", "fit_score", "reasons"},
	},
	OpDiscoverLeads: {
		preamble: "You are a sales researcher. Suggest companies and contacts matching the ideal customer profile below.",
		example:  `{"leads": [{"name": "...", "company": "...", "title": "...", "reason": "..."}]}`,
		required: []string{"leads"},
	},
}

func init() {
	schemas := map[Operation]*genai.Schema{
		OpAnalyzeTranscript: object(formats[OpAnalyzeTranscript].required, map[string]*genai.Schema{
			"sentiment":  str(),
			"objections": strs(),
			"next_steps": strs(),
		}),
		OpEstimateDealValue: object(formats[OpEstimateDealValue].required, map[string]*genai.Schema{
			"estimated_value_usd": num(),
			"value_range": object([]string{"low", "high"}, map[string]*genai.Schema{
				"low":  num(),
				"high": num(),
			}),
			"confidence":   num(),
			"signals_used": strs(),
		}),
		OpRecommendActions: object(formats[OpRecommendActions].required, map[string]*genai.Schema{
			"next_actions": strs(),
			"priority":     str(),
			"reasoning":    str(),
		}),
		OpDraftColdEmail: object(formats[OpDraftColdEmail].required, map[string]*genai.Schema{
			"subject": str(),
			"body":    str(),
		}),
		OpDraftLinkedIn: object(formats[OpDraftLinkedIn].required, map[string]*genai.Schema{
			"message": str(),
		}),
		OpDraftFollowUp: object(formats[OpDraftFollowUp].required, map[string]*genai.Schema{
			"subject": str(),
			"body":    str(),
		}),
		OpResearchLead: object(formats[OpResearchLead].required, map[string]*genai.Schema{
			"summary":   str(),
			"fit_score": integer(),
			"reasons":   strs(),
		}),
		OpDiscoverLeads: object(formats[OpDiscoverLeads].required, map[string]*genai.Schema{
			"leads": {
				Type: genai.TypeArray,
				Items: object([]string{"name", "company"}, map[string]*genai.Schema{
					"name":    str(),
					"company": str(),
					"title":   str(),
					"reason":  str(),
				}),
			},
		}),
	}
	for op, s := range schemas {
		f := formats[op]
		f.schema = s
		formats[op] = f
	}
}

// buildPrompt renders preamble, context sections and the reply contract.
func buildPrompt(op Operation, sections ...section) string {
	f := formats[op]

	var b strings.Builder
	b.WriteString(f.preamble)
	b.WriteString("\n\n")
	for _, s := range sections {
		fmt.Fprintf(&b, "## %s\n%s\n\n", s.title, s.body)
	}
	b.WriteString("Reply with a single JSON object and nothing else, exactly in this shape:\n")
	b.WriteString(f.example)
	b.WriteString("\n")
	return b.String()
}

type section struct {
	title string
	body  string
}

func jsonSection(title string, v any) section {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return section{title: title, body: fmt.Sprintf("%v", v)}
	}
	return section{title: title, body: string(raw)}
}

func textSection(title, body string) section {
	return section{title: title, body: strings.TrimSpace(body)}
}
