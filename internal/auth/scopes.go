package auth

// Known OAuth scopes used by the health analytics API.
const (
	ScopeHealthWrite = "health:write"
	ScopeHealthRead  = "health:read"
)
