package summarizer

import (
	"github.com/codetribute/codetribute/internal/models"
	"github.com/codetribute/codetribute/internal/worklog"
)

const summaryInstruction = "Summarize the following work activities concisely without providing suggestions, recommendations, or additional information:"

// BuildPrompt renders the single user message sent to the model. It uses the
// per-event detailed log, not the deduplicated block.
func BuildPrompt(batch []models.ActivityRecord) string {
	return summaryInstruction + "\n" + worklog.DetailedLog(batch)
}
