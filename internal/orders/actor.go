package orders

import "fmt"

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCustomer, RoleSeller, RoleAdmin, RoleSystem:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Actor is whoever asks for a state change: an authenticated user or the system itself.
type Actor struct {
	UserID string
	Role   Role
}

// SystemActor is used by the reconciler and background jobs.
var SystemActor = Actor{Role: RoleSystem}

func (a Actor) String() string {
	if a.Role == RoleSystem {
		return "system"
	}
	return fmt.Sprintf("%s:%s", a.Role, a.UserID)
}

// plays reports whether a holds party p for an order bought by buyerID from sellerID.
func (a Actor) plays(p party, buyerID, sellerID string) bool {
	switch p {
	case partyBuyer:
		return a.Role != RoleSystem && a.UserID != "" && a.UserID == buyerID
	case partySeller:
		return a.Role == RoleSeller && a.UserID != "" && a.UserID == sellerID
	case partySystem:
		return a.Role == RoleSystem
	default:
		return false
	}
}

// CanView reports whether a may read an order and its history.
func (a Actor) CanView(buyerID, sellerID string) bool {
	switch a.Role {
	case RoleAdmin, RoleSystem:
		return true
	case RoleSeller:
		return a.UserID == sellerID || a.UserID == buyerID
	case RoleCustomer:
		return a.UserID == buyerID
	default:
		return false
	}
}
