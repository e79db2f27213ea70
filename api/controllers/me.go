package controllers

import (
	"net/http"

	"github.com/angelmondragon/orderdesk-backend/api/middleware"
	"github.com/angelmondragon/orderdesk-backend/api/responses"
)

type operatorSessionResponse struct {
	OperatorID string `json:"operatorId"`
	TenantID   string `json:"tenantId"`
	Role       string `json:"role"`
}

// OperatorSession echoes the identity the panel's token resolved to. The panel
// calls it on load to detect an expired or foreign-tenant token before opening
// the order stream.
func OperatorSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		responses.WriteSuccess(w, operatorSessionResponse{
			OperatorID: middleware.OperatorIDFromContext(ctx),
			TenantID:   middleware.TenantIDFromContext(ctx),
			Role:       middleware.RoleFromContext(ctx),
		})
	}
}
