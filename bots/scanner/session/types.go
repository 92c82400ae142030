package session

import "time"

// State identifies the conversation step a user is in.
type State string

// Conversation states. Start is the implicit state before /start is processed.
const (
	StateStart              State = "start"
	StateWelcome            State = "welcome"
	StateQuizResult         State = "quiz_result"
	StateAbout              State = "about"
	StateExamples           State = "examples"
	StatePricing            State = "pricing"
	StateAwaitingPayment    State = "awaiting_payment"
	StateCheckingFreeAccess State = "checking_free_access"
	StateAwaitingPhoto      State = "awaiting_photo"
	StateAwaitingRequest    State = "awaiting_request_text"
	StateAwaitingName       State = "awaiting_name"
	StateTerminal           State = "terminal"
)

// FunnelStage is the marketing-journey label, loosely tracking State.
type FunnelStage string

// Funnel stages.
const (
	StageStart       FunnelStage = "start"
	StageWelcome     FunnelStage = "welcome"
	StageQuizResult  FunnelStage = "quiz_result"
	StageAbout       FunnelStage = "about"
	StageExamples    FunnelStage = "examples"
	StagePricing     FunnelStage = "pricing"
	StageCheckAccess FunnelStage = "check_access"
	StagePaid        FunnelStage = "paid"
	StageFreeAccess  FunnelStage = "free_access"
)

// PaymentStatus tracks how the user is entitled to analyses.
type PaymentStatus string

// Payment statuses.
const (
	PaymentNone    PaymentStatus = "none"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFree    PaymentStatus = "free"
)

// Session is the per-user conversation record. Store hands out copies.
type Session struct {
	UserID int64
	ChatID int64
	State  State

	DisplayName   string
	PendingPhoto  string
	PendingText   string
	QuizAnswer    string
	FunnelStage   FunnelStage
	PaymentStatus PaymentStatus
	Credits       int
	Subscription  string

	CreatedAt  time.Time
	LastSeenAt time.Time
}

// Entitled reports whether the payment status unlocks the analysis path.
func (s Session) Entitled() bool {
	return s.PaymentStatus == PaymentPaid || s.PaymentStatus == PaymentFree
}

// ClearRequest drops the inputs of the current analysis attempt.
func (s *Session) ClearRequest() {
	s.PendingPhoto = ""
	s.PendingText = ""
	s.DisplayName = ""
}
