package assist

import "exam-arena-service/internal/domain"

// Static texts used when every provider attempt failed. Keyed by call site, then language.
var fallbackTexts = map[string]domain.LocalizedText{
	SiteChat: {
		"en": "Sorry, the study assistant is unavailable right now. Please try again in a moment.",
		"hi": "क्षमा करें, अध्ययन सहायक अभी उपलब्ध नहीं है। कृपया थोड़ी देर बाद पुनः प्रयास करें।",
	},
	SiteHint: {
		"en": "Read every option carefully and eliminate the ones that are clearly wrong first.",
		"hi": "सभी विकल्पों को ध्यान से पढ़ें और पहले स्पष्ट रूप से गलत विकल्पों को हटा दें।",
	},
	SiteExplain: {
		"en": "An explanation is not available right now. Review this topic in your study notes.",
		"hi": "अभी व्याख्या उपलब्ध नहीं है। कृपया अपने नोट्स में इस विषय को दोहराएँ।",
	},
	SiteStudyVerify: {
		"en": "Correct! Excellent preparation.",
		"hi": "सही! उत्कृष्ट तैयारी।",
	},
}

func fallbackText(site, lang string) string {
	return fallbackTexts[site].In(lang)
}

// fallbackStudyQuestions is served when no provider can generate a study question.
var fallbackStudyQuestions = map[string]StudyQuestion{
	"en": {
		Question:      "Which article of the Indian Constitution abolishes untouchability?",
		Options:       []string{"Article 14", "Article 17", "Article 21", "Article 32"},
		CorrectAnswer: "Article 17",
		Subject:       "polity",
		Difficulty:    string(domain.DifficultyEasy),
	},
	"hi": {
		Question:      "भारतीय संविधान का कौन सा अनुच्छेद अस्पृश्यता का उन्मूलन करता है?",
		Options:       []string{"अनुच्छेद 14", "अनुच्छेद 17", "अनुच्छेद 21", "अनुच्छेद 32"},
		CorrectAnswer: "अनुच्छेद 17",
		Subject:       "polity",
		Difficulty:    string(domain.DifficultyEasy),
	},
}

func fallbackStudyQuestion(lang string) StudyQuestion {
	if q, ok := fallbackStudyQuestions[lang]; ok {
		return q
	}
	return fallbackStudyQuestions[domain.DefaultLanguage]
}
