package auth

// TokenClaims is what the dashboard's access token carries. Tokens are
// issued by the account service; this service only verifies them.
type TokenClaims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
}
