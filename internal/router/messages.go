package router

import "agentrouter/internal/domain"

// Canned, localized responses for the two non-dispatch classifier
// outcomes. Per the design decision recorded in DESIGN.md, clarification
// text is a fixed bilingual pair rather than a further LLM call: a
// classifier that cannot confidently pick one agent has nothing further to
// gain by asking the same model to phrase the apology.
var unclearMessages = map[string]string{
	domain.LanguageVietnamese: "Xin lỗi, tôi chưa hiểu rõ yêu cầu của bạn. Bạn có thể diễn đạt lại được không?",
	domain.LanguageEnglish:    "Sorry, I didn't quite catch what you need. Could you rephrase that?",
}

var multiIntentMessages = map[string]string{
	domain.LanguageVietnamese: "Tôi thấy bạn đang hỏi nhiều việc cùng lúc. Bạn vui lòng hỏi từng việc một nhé.",
	domain.LanguageEnglish:    "It looks like you're asking about more than one thing at once. Could you ask one thing at a time?",
}

func unclearMessage(language string) string {
	if text, ok := unclearMessages[language]; ok {
		return text
	}
	return unclearMessages[domain.LanguageEnglish]
}

func multiIntentMessage(language string) string {
	if text, ok := multiIntentMessages[language]; ok {
		return text
	}
	return multiIntentMessages[domain.LanguageEnglish]
}
