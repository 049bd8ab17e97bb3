package middlewarectx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEdgeGuard(t *testing.T) {
	tests := []struct {
		name         string
		path         string
		tokenCookie  string
		authHeader   string
		businessID   string
		wantStatus   int
		wantLocation string
		wantBusiness string
	}{
		{
			name:         "protected without token redirects to login",
			path:         "/campaigns/42",
			wantStatus:   http.StatusFound,
			wantLocation: "/login?redirect=%2Fcampaigns%2F42",
		},
		{
			name:         "every protected prefix is guarded",
			path:         "/analytics",
			wantStatus:   http.StatusFound,
			wantLocation: "/login?redirect=%2Fanalytics",
		},
		{
			name:        "protected with cookie token passes",
			path:        "/credits",
			tokenCookie: "tok",
			wantStatus:  http.StatusOK,
		},
		{
			name:       "protected with bearer header passes",
			path:       "/dashboard",
			authHeader: "Bearer tok",
			wantStatus: http.StatusOK,
		},
		{
			name:         "business id is forwarded",
			path:         "/settings",
			tokenCookie:  "tok",
			businessID:   "biz-9",
			wantStatus:   http.StatusOK,
			wantBusiness: "biz-9",
		},
		{
			name:         "login with token redirects to campaigns",
			path:         "/login",
			tokenCookie:  "tok",
			wantStatus:   http.StatusFound,
			wantLocation: "/campaigns",
		},
		{
			name:       "login without token passes",
			path:       "/signup",
			wantStatus: http.StatusOK,
		},
		{
			name:       "similar prefix is not protected",
			path:       "/creditsfaq",
			wantStatus: http.StatusOK,
		},
		{
			name:       "public page passes",
			path:       "/",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBusiness string
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotBusiness = r.Header.Get(BusinessHeader)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.tokenCookie != "" {
				req.AddCookie(&http.Cookie{Name: TokenCookie, Value: tt.tokenCookie})
			}
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			if tt.businessID != "" {
				req.AddCookie(&http.Cookie{Name: BusinessCookie, Value: tt.businessID})
			}
			rr := httptest.NewRecorder()

			EdgeGuard(next).ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantLocation, rr.Header().Get("Location"))
			assert.Equal(t, tt.wantBusiness, gotBusiness)
		})
	}
}
