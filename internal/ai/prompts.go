package ai

import (
	"fmt"
	"strings"
)

// assistantPages tailors the assistant to the page it was opened from.
var assistantPages = map[string]string{
	"jobs":          "The user is browsing job listings. Help them judge fit and tailor applications.",
	"trainings":     "The user is looking at training courses. Help them choose courses that close skill gaps.",
	"consultations": "The user is booking a career consultation. Help them prepare focused questions.",
	"resume":        "The user is working on their resume. Give concrete, line-level suggestions.",
}

// AssistantSystemPrompt builds the system prompt for the career assistant.
// Unknown pages fall back to the general prompt.
func AssistantSystemPrompt(page string) string {
	var b strings.Builder
	b.WriteString("You are a concise career assistant for job seekers. ")
	b.WriteString("Answer in at most five short paragraphs. Do not invent job listings or company facts.")
	if extra, ok := assistantPages[strings.ToLower(strings.TrimSpace(page))]; ok {
		b.WriteString("\n\n")
		b.WriteString(extra)
	}
	return b.String()
}

// ResumeReviewPrompts builds the system and user prompts for a resume review.
// Advanced reviews ask for a rewrite plan in addition to the critique.
func ResumeReviewPrompts(advanced bool, experience, resume string) (system, prompt string) {
	system = fmt.Sprintf("You are an experienced recruiter reviewing the resume of a %s candidate. "+
		"Judge it against what hiring managers expect at that level.", experience)

	var b strings.Builder
	b.WriteString("Review the resume below. List the three biggest strengths and the three most important fixes.")
	if advanced {
		b.WriteString(" Then rewrite the summary section and give a bullet-by-bullet rewrite plan for the most recent role.")
	}
	b.WriteString("\n\nResume:\n")
	b.WriteString(resume)
	return system, b.String()
}
