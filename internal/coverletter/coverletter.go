// Package coverletter defines the cover-letter generation contract used when
// a bid is prepared.
package coverletter

import (
	"context"
	"fmt"
	"strings"
)

// Request carries the job and profile material the generator works from.
type Request struct {
	JobTitle          string
	JobDescription    string
	ExperienceSummary string
	SampleLinks       []string
}

// Generator produces a cover letter for a bid. Implementations report
// failures as errors; callers record them as a failed bid attempt.
type Generator interface {
	Generate(ctx context.Context, req *Request) (string, error)
}

// BuildPrompt renders the generation prompt from a request. Sample links are
// appended so the model can reference prior work.
func BuildPrompt(req *Request) string {
	var b strings.Builder

	b.WriteString("Write a short, professional cover letter for the following freelance job.\n")
	b.WriteString("Keep it under 150 words, address the client directly, and do not invent experience.\n\n")
	fmt.Fprintf(&b, "Job title: %s\n", req.JobTitle)
	fmt.Fprintf(&b, "Job description:\n%s\n", req.JobDescription)

	if summary := strings.TrimSpace(req.ExperienceSummary); summary != "" {
		fmt.Fprintf(&b, "\nFreelancer background:\n%s\n", summary)
	}

	if len(req.SampleLinks) > 0 {
		b.WriteString("\nMention that samples of previous work are available at:\n")
		for _, link := range req.SampleLinks {
			if link = strings.TrimSpace(link); link != "" {
				fmt.Fprintf(&b, "- %s\n", link)
			}
		}
	}

	return b.String()
}
