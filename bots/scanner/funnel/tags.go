package funnel

// Menu tags carried by inline buttons.
const (
	TagShowWelcome  = "show_welcome"
	TagAbout        = "about_scanner"
	TagExamples     = "show_examples"
	TagPricing      = "goto_pricing"
	TagCheckPayment = "check_payment"
	TagRetryEmail   = "retry_email"
	TagNewAnalysis  = "new_analysis"

	TagQuizMoney       = "quiz_money"
	TagQuizLove        = "quiz_love"
	TagQuizHealth      = "quiz_health"
	TagQuizRealization = "quiz_realization"
)

// Deep-link payloads of /start.
const (
	DeepLinkCheckAccess = "checkdostup"
	DeepLinkFreeScan    = "freescan"
)

// Tags lists every tag the machine reacts to, for transport registration.
func Tags() []string {
	return []string{
		TagShowWelcome, TagAbout, TagExamples, TagPricing, TagCheckPayment,
		TagRetryEmail, TagNewAnalysis,
		TagQuizMoney, TagQuizLove, TagQuizHealth, TagQuizRealization,
	}
}

func isQuizTag(tag string) bool {
	_, ok := quizExamples[tag]
	return ok
}
