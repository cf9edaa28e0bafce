package prompt

import (
	"strings"

	"github.com/uiucchat/chatcore/internal/chat"
)

// modes resolves which prompt modes are active and which addenda still need appending.
// Course-wide settings are assumed to be baked into the course system prompt already,
// so an addendum is appended only when a link parameter enables a mode the course
// has not enabled.
type modes struct {
	guidedLearning   bool
	documentsOnly    bool
	systemPromptOnly bool

	appendGuidedLearning bool
	appendDocumentsOnly  bool
}

func resolveModes(link chat.LinkParameters, course *chat.CourseMetadata) modes {
	return modes{
		guidedLearning:       link.GuidedLearning || course.GuidedLearning,
		documentsOnly:        link.DocumentsOnly || course.DocumentsOnly,
		systemPromptOnly:     link.SystemPromptOnly || course.SystemPromptOnly,
		appendGuidedLearning: link.GuidedLearning && !course.GuidedLearning,
		appendDocumentsOnly:  link.DocumentsOnly && !course.DocumentsOnly,
	}
}

// BaseSystemPrompt picks the course prompt, then the conversation override, then the default.
func BaseSystemPrompt(conv *chat.Conversation, course *chat.CourseMetadata) string {
	if course != nil && course.SystemPrompt != nil && strings.TrimSpace(*course.SystemPrompt) != "" {
		return *course.SystemPrompt
	}
	if strings.TrimSpace(conv.Prompt) != "" {
		return conv.Prompt
	}
	return DefaultSystemPrompt
}

// BuildSystemPrompt composes the final system prompt for the turn.
func BuildSystemPrompt(conv *chat.Conversation, course *chat.CourseMetadata, hasContexts bool) string {
	if course == nil {
		course = &chat.CourseMetadata{}
	}
	m := resolveModes(conv.LinkParameters, course)

	var sb strings.Builder
	sb.WriteString(BaseSystemPrompt(conv, course))
	if m.appendGuidedLearning {
		sb.WriteString(GuidedLearningAddendum)
	}
	if m.appendDocumentsOnly {
		sb.WriteString(DocumentsOnlyAddendum)
	}
	if m.systemPromptOnly {
		return strings.TrimSpace(sb.String())
	}

	sb.WriteString(MathNotationInstructions)
	if !hasContexts {
		return strings.TrimSpace(sb.String())
	}

	switch {
	case m.guidedLearning:
		sb.WriteString(GuidedLearningCitationInstructions)
	case !m.documentsOnly:
		sb.WriteString(DefaultCitationInstructions)
	default:
		sb.WriteString(DocumentsOnlyCitationInstructions)
	}
	return strings.TrimSpace(sb.String())
}
