package auth

// Identity is the verified caller of a single request. It is derived from the
// bearer token on every request and never persisted.
type Identity struct {
	UserID      int64  `json:"userId"`
	Email       string `json:"email"`
	Role        Role   `json:"role"`
	CommunityID int64  `json:"communityId,omitempty"`
}

// HasCommunity reports whether the identity is bound to a community.
func (i Identity) HasCommunity() bool { return i.CommunityID > 0 }

// IsAdmin reports whether the identity carries the administrator role.
func (i Identity) IsAdmin() bool { return i.Role.IsAdmin() }
