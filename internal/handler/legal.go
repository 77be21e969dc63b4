package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"habitrefund/internal/config"
	"habitrefund/internal/navigation"
)

// Link is a navigation target shown in a view.
type Link struct {
	Label string `json:"label"`
	Route string `json:"route"`
}

// Section is a titled paragraph of a static page.
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// LegalView is a static legal or help page.
type LegalView struct {
	Route     string    `json:"route"`
	Title     string    `json:"title"`
	Effective string    `json:"effective,omitempty"`
	Sections  []Section `json:"sections"`
	Footer    Footer    `json:"footer"`
}

// Footer is rendered at the bottom of every screen.
type Footer struct {
	Links  []Link `json:"links"`
	Notice string `json:"notice"`
}

const footerNotice = "* 앱인토스(WebView) 테스트/이용은 토스 정책에 따라 제한될 수 있습니다."

func legalFooter() Footer {
	return Footer{
		Links: []Link{
			{Label: "이용약관", Route: navigation.RouteTerms},
			{Label: "개인정보처리방침", Route: navigation.RoutePrivacy},
			{Label: "고객센터", Route: navigation.RouteSupport},
			{Label: "이용안내", Route: navigation.RouteHelp},
		},
		Notice: footerNotice,
	}
}

// legalPage builds the page named by slug, or false if there is none.
func legalPage(slug string, app config.AppConfig) (LegalView, bool) {
	name := app.DisplayName

	switch slug {
	case "help":
		return LegalView{
			Route: navigation.RouteHelp,
			Title: "이용안내",
			Sections: []Section{
				{"서비스 개요", name + "은(는) 사용자가 선택한 챌린지를 수행하고, 정해진 인증 조건을 충족하면 리워드를 제공하는 “습관 관리” 서비스입니다. 사행성/투자 상품이 아니며, 재산 증식을 보장하지 않습니다."},
				{"이용 흐름", "(1) 챌린지 선택 → (2) 참가비 결제 → (3) 인증 제출 → (4) 기간 종료 후 결과 확인/리워드 제공"},
				{"이용 제한", "앱인토스(WebView) 테스트/이용은 토스 정책에 따라 워크스페이스 멤버 여부 및 연령 조건 등으로 제한될 수 있습니다."},
				{"부정 사용 방지", "동일 이미지 재사용 차단, 촬영시간(EXIF) 검증, 자동 분류(비전) 1차 필터, 신뢰 데이터(만보기/SDK) 연동을 순차 적용합니다."},
			},
			Footer: legalFooter(),
		}, true
	case "terms":
		return LegalView{
			Route: navigation.RouteTerms,
			Title: "이용약관",
			Sections: []Section{
				{"제1조 (서비스의 성격)", name + "은(는) 사용자의 습관 형성을 돕기 위해 챌린지 참여, 인증, 결과 안내 및 리워드 제공 기능을 제공합니다. 본 서비스는 사행성/투자 상품이 아니며, 수익을 보장하지 않습니다."},
				{"제2조 (참가비 및 리워드)", "참가비는 챌린지 참여를 위한 비용이며, 리워드는 성공 조건 충족 시 제공되는 혜택입니다. 리워드의 형태(포인트/쿠폰 등), 기준 및 시점은 서비스 화면 및 공지에 따릅니다."},
				{"제3조 (인증 및 제한)", "인증 조건을 충족하지 못한 경우 리워드가 제공되지 않을 수 있습니다. 부정행위(타인 사진/재사용 이미지/조작 등) 탐지 시 참여 제한 또는 계정 이용이 제한될 수 있습니다."},
				{"제4조 (문의 및 분쟁)", "이용 관련 문의는 고객센터를 통해 접수할 수 있으며, 분쟁 발생 시 합리적인 범위에서 조정 절차를 진행합니다."},
			},
			Footer: legalFooter(),
		}, true
	case "privacy":
		return LegalView{
			Route:     navigation.RoutePrivacy,
			Title:     "개인정보처리방침",
			Effective: "시행일: " + app.PrivacyEffectiveDate,
			Sections: []Section{
				{"1. 수집 항목(최소화)", name + "은(는) 서비스 제공에 필요한 최소 정보만 처리합니다. (예: 토큰 기반 식별자, 접속 로그) 사진 인증 기능을 사용하는 경우, 인증 사진은 부정행위 방지 및 결과 검증 목적에 한해 처리될 수 있습니다."},
				{"2. 이용 목적", "(1) 로그인/세션 유지 (2) 챌린지 참여 및 인증 처리 (3) 결과 안내 및 리워드 제공 (4) 부정 사용 방지 (5) CS 대응 및 서비스 개선"},
				{"3. 보관 및 삭제", "보관 기간은 법령 또는 운영 정책에 따르며, 목적 달성 시 지체 없이 삭제합니다. 이용자는 고객센터를 통해 열람/정정/삭제를 요청할 수 있습니다."},
			},
			Footer: legalFooter(),
		}, true
	case "support":
		return LegalView{
			Route: navigation.RouteSupport,
			Title: "고객센터",
			Sections: []Section{
				{"연락 채널", "이메일: " + app.SupportEmail + "\n운영시간: " + app.SupportHours},
				{"문의 유형", "1) 인증 실패/지연  2) 리워드 지급 문의  3) 부정사용 신고  4) 계정/접속 문제"},
			},
			Footer: legalFooter(),
		}, true
	}
	return LegalView{}, false
}

// LegalScreen handles GET /api/screens/legal/{page}
func (h *Handler) LegalScreen(w http.ResponseWriter, r *http.Request) {
	view, ok := legalPage(chi.URLParam(r, "page"), h.deps.App)
	if !ok {
		h.respondError(w, http.StatusNotFound, "page not found")
		return
	}
	h.visit(view.Route)
	h.respondJSON(w, http.StatusOK, view)
}
