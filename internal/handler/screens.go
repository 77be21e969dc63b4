package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"habitrefund/internal/apiclient"
	"habitrefund/internal/auth"
	"habitrefund/internal/catalog"
	"habitrefund/internal/models"
	"habitrefund/internal/navigation"
	"habitrefund/internal/payment"
	"habitrefund/internal/proof"
	"habitrefund/internal/settlement"
)

// Texts shared by the screens.
const (
	MessageUnlinked          = "토스 연결이 해제되어 다시 로그인이 필요합니다."
	MessageOfficialOnly      = "공식 챌린지 3개만 제공합니다."
	MessageBackendFailed     = "백엔드 연결 실패: "
	MessageChallengeNotFound = "존재하지 않는 챌린지입니다."
	MessageProofNotFound     = "챌린지를 찾을 수 없습니다."
	MessageHistoryEmpty      = "아직 참여한 챌린지가 없습니다"

	labelLogin      = "토스 로그인"
	labelLoggingIn  = "로그인 중..."
	labelProcessing = "처리 중..."
	labelSubmit     = "인증 제출"
	labelSubmitting = "제출 중..."

	guidePhoto = "사진 인증(카메라 권장). EXIF/중복검증은 서버에서 처리(로드맵)."
	guideSteps = "만보기/걸음수 인증(데모)."
)

var loginNotes = []string{
	"* 앱인토스 로그인(appLogin) 인가 코드 유효시간은 10분입니다.",
	"* 로컬 브라우저에서는 데모 로그인으로 자동 대체됩니다.",
}

// Button is the bottom call to action of a screen.
type Button struct {
	Label    string `json:"label"`
	Disabled bool   `json:"disabled"`
}

// LoginView is the login screen.
type LoginView struct {
	Route  string   `json:"route"`
	Title  string   `json:"title"`
	Notice string   `json:"notice,omitempty"`
	Intro  string   `json:"intro"`
	Button Button   `json:"button"`
	Notes  []string `json:"notes"`
	Footer Footer   `json:"footer"`
}

// ChallengeRow is one entry of the home list.
type ChallengeRow struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Route   string `json:"route"`
}

// HomeView is the challenge list.
type HomeView struct {
	Route   string         `json:"route"`
	Title   string         `json:"title"`
	Notice  string         `json:"notice"`
	Items   []ChallengeRow `json:"items"`
	Source  catalog.Source `json:"source"`
	Error   string         `json:"error,omitempty"`
	History Link           `json:"history"`
	Footer  Footer         `json:"footer"`
}

// ChallengeView is the deposit screen of one challenge.
type ChallengeView struct {
	Route     string           `json:"route"`
	Title     string           `json:"title"`
	Challenge models.Challenge `json:"challenge"`
	Summary   string           `json:"summary"`
	Payment   payment.Snapshot `json:"payment"`
	Button    Button           `json:"button"`
	Footer    Footer           `json:"footer"`
}

// ProofView is the evidence screen of one challenge.
type ProofView struct {
	Route     string           `json:"route"`
	Title     string           `json:"title"`
	Challenge models.Challenge `json:"challenge"`
	Guide     string           `json:"guide"`
	// PhotoRequired tells the client to send a multipart photo field.
	PhotoRequired bool   `json:"photoRequired"`
	Message       string `json:"message,omitempty"`
	Button        Button `json:"button"`
	History       Link   `json:"history"`
	Footer        Footer `json:"footer"`
}

// HistoryView is the settlement list.
type HistoryView struct {
	Route  string           `json:"route"`
	Title  string           `json:"title"`
	Rows   []settlement.Row `json:"rows"`
	Empty  string           `json:"empty,omitempty"`
	Error  string           `json:"error,omitempty"`
	Footer Footer           `json:"footer"`
}

var historyLink = Link{Label: "정산내역 보기", Route: navigation.RouteHistory}

// LoginScreen handles GET /api/screens/login
func (h *Handler) LoginScreen(w http.ResponseWriter, r *http.Request) {
	current := h.deps.Nav.Current()
	reason := r.URL.Query().Get("reason")
	if reason == "" && navigation.IsLogin(current) {
		reason = navigation.Reason(current)
	}
	if !navigation.IsLogin(current) {
		h.deps.Nav.Navigate(navigation.LoginPath(reason))
	}

	view := LoginView{
		Route:  navigation.LoginPath(reason),
		Title:  "로그인",
		Intro:  "토스앱에서는 토스 로그인을 통해 인가 코드를 받고, 서버에서 토큰으로 교환합니다.",
		Button: Button{Label: labelLogin},
		Notes:  loginNotes,
		Footer: legalFooter(),
	}
	if reason == navigation.ReasonUnlinked {
		view.Notice = MessageUnlinked
	}
	if h.deps.Resolver != nil && h.deps.Resolver.Busy() {
		view.Button = Button{Label: labelLoggingIn, Disabled: true}
	}
	h.respondJSON(w, http.StatusOK, view)
}

// HomeScreen handles GET /api/screens/home
func (h *Handler) HomeScreen(w http.ResponseWriter, r *http.Request) {
	h.visit(navigation.RouteHome)

	listing := h.deps.Catalog.List(r.Context())
	view := HomeView{
		Route:   navigation.RouteHome,
		Title:   h.deps.App.DisplayName,
		Notice:  MessageOfficialOnly,
		Items:   make([]ChallengeRow, 0, len(listing.Items)),
		Source:  listing.Source,
		History: historyLink,
		Footer:  legalFooter(),
	}
	for _, ch := range listing.Items {
		view.Items = append(view.Items, ChallengeRow{
			ID:      ch.ID,
			Title:   ch.Title,
			Summary: catalog.Summary(ch),
			Route:   navigation.ChallengePath(ch.ID),
		})
	}
	if listing.Error != "" {
		view.Error = MessageBackendFailed + listing.Error
	}
	h.respondJSON(w, http.StatusOK, view)
}

// ChallengeScreen handles GET /api/screens/challenge/{id}
func (h *Handler) ChallengeScreen(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ch, ok := h.findChallenge(r, id)
	if !ok {
		h.respondError(w, http.StatusNotFound, MessageChallengeNotFound)
		return
	}
	h.visit(navigation.ChallengePath(id))
	h.respondJSON(w, http.StatusOK, h.challengeView(ch))
}

func (h *Handler) challengeView(ch models.Challenge) ChallengeView {
	snap := h.paymentFor(ch.ID).Snapshot()
	button := Button{Label: catalog.DepositLabel(ch)}
	if snap.State.InFlight() {
		button = Button{Label: labelProcessing, Disabled: true}
	}
	return ChallengeView{
		Route:     navigation.ChallengePath(ch.ID),
		Title:     "정산 계약",
		Challenge: ch,
		Summary:   catalog.Summary(ch),
		Payment:   snap,
		Button:    button,
		Footer:    legalFooter(),
	}
}

// ProofScreen handles GET /api/screens/proof/{id}
func (h *Handler) ProofScreen(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ch, ok := h.findChallenge(r, id)
	if !ok {
		h.respondError(w, http.StatusNotFound, MessageProofNotFound)
		return
	}
	h.visit(navigation.ProofPath(id))
	h.respondJSON(w, http.StatusOK, h.proofView(ch))
}

func (h *Handler) proofView(ch models.Challenge) ProofView {
	view := ProofView{
		Route:         navigation.ProofPath(ch.ID),
		Title:         "오늘 인증",
		Challenge:     ch,
		Guide:         guideSteps,
		PhotoRequired: ch.ProofType == models.ProofPhoto,
		Button:        Button{Label: labelSubmit},
		History:       historyLink,
		Footer:        legalFooter(),
	}
	if view.PhotoRequired {
		view.Guide = guidePhoto
	}
	if res, ok := h.lastProofResult(ch.ID); ok {
		view.Message = res.Message
	}
	if h.proofFor(ch.ID).Submitting() {
		view.Button = Button{Label: labelSubmitting, Disabled: true}
	}
	return view
}

// HistoryScreen handles GET /api/screens/history
func (h *Handler) HistoryScreen(w http.ResponseWriter, r *http.Request) {
	h.visit(navigation.RouteHistory)

	view := HistoryView{
		Route:  navigation.RouteHistory,
		Title:  "정산내역",
		Rows:   []settlement.Row{},
		Footer: legalFooter(),
	}

	items, err := h.deps.Settlements.List(r.Context())
	if err != nil {
		if apiclient.IsUnauthorized(err) {
			h.respondUnlinked(w)
			return
		}
		h.logger.Warn("settlement list failed", "error", err)
		view.Error = settlement.MessageLoadFailed
		h.respondJSON(w, http.StatusOK, view)
		return
	}

	for _, st := range items {
		view.Rows = append(view.Rows, settlement.Describe(st))
	}
	if len(view.Rows) == 0 {
		view.Empty = MessageHistoryEmpty
	}
	h.respondJSON(w, http.StatusOK, view)
}

// respondUnlinked reports a session the backend no longer accepts. The
// client has already cleared the token and moved to the login view.
func (h *Handler) respondUnlinked(w http.ResponseWriter) {
	h.respondJSON(w, http.StatusUnauthorized, AuthRequired{
		Error:    "session_expired",
		Redirect: navigation.LoginPath(navigation.ReasonUnlinked),
	})
}

// loginFailure is the text shown for a failed login attempt.
func loginFailure(att auth.Attempt, err error) string {
	if att.Reason != nil && att.Reason.Error() != "" {
		return att.Reason.Error()
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return auth.MessageLoginFailed
}

// proofMessage falls back to the generic failure text.
func proofMessage(res proof.Result) string {
	if res.Message == "" {
		return proof.MessageFailed
	}
	return res.Message
}
