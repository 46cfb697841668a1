package domain

import "fmt"

// Role is the closed set of CRM user roles.
type Role string

const (
	RoleAdmin            Role = "admin"
	RoleManager          Role = "manager"
	RoleMandatary        Role = "mandatary"
	RoleBusinessProvider Role = "business_provider"
	RolePartnerCompany   Role = "partner_company"
	RoleClient           Role = "client"
)

// ParseRole validates a role claim.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleManager, RoleMandatary, RoleBusinessProvider, RolePartnerCompany, RoleClient:
		return r, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Permissions is what a role may do on the commission service.
type Permissions struct {
	ViewTiers          bool
	ViewAllCommissions bool
	ViewOwnCommissions bool
	ViewAnyProduction  bool
	ViewOwnProduction  bool
	Simulate           bool
	ManageCommissions  bool
	ManageInvoices     bool
	ViewAllInvoices    bool
	ViewOwnInvoices    bool
}

// PermissionsFor returns the capabilities of role. Unknown roles get none.
func PermissionsFor(role Role) Permissions {
	switch role {
	case RoleAdmin, RoleManager:
		return Permissions{
			ViewTiers:          true,
			ViewAllCommissions: true,
			ViewAnyProduction:  true,
			Simulate:           true,
			ManageCommissions:  true,
			ManageInvoices:     true,
			ViewAllInvoices:    true,
		}
	case RoleMandatary:
		return Permissions{
			ViewTiers:          true,
			ViewOwnCommissions: true,
			ViewOwnProduction:  true,
			Simulate:           true,
		}
	case RoleBusinessProvider:
		return Permissions{
			ViewTiers:          true,
			ViewOwnCommissions: true,
		}
	case RolePartnerCompany, RoleClient:
		return Permissions{ViewOwnInvoices: true}
	default:
		return Permissions{}
	}
}

// CanViewProduction reports whether userID with role may read mandataryID's production.
func CanViewProduction(role Role, userID, mandataryID string) bool {
	p := PermissionsFor(role)
	return p.ViewAnyProduction || (p.ViewOwnProduction && userID == mandataryID)
}

// CanViewCommission reports whether c is visible to userID with role.
func CanViewCommission(role Role, userID string, c Commission) bool {
	p := PermissionsFor(role)
	if p.ViewAllCommissions {
		return true
	}
	if !p.ViewOwnCommissions {
		return false
	}
	switch role {
	case RoleMandatary:
		return c.MandataryID == userID
	case RoleBusinessProvider:
		return c.ApporteurID != nil && *c.ApporteurID == userID
	default:
		return false
	}
}

// FilterCommissions keeps the commissions visible to userID with role.
func FilterCommissions(role Role, userID string, commissions []Commission) []Commission {
	out := make([]Commission, 0, len(commissions))
	for _, c := range commissions {
		if CanViewCommission(role, userID, c) {
			out = append(out, c)
		}
	}
	return out
}

// CanViewInvoice reports whether inv is visible to userID with role.
func CanViewInvoice(role Role, userID string, inv Invoice) bool {
	p := PermissionsFor(role)
	if p.ViewAllInvoices {
		return true
	}
	return p.ViewOwnInvoices && inv.RecipientID == userID
}

// FilterInvoices keeps the invoices visible to userID with role.
func FilterInvoices(role Role, userID string, invoices []Invoice) []Invoice {
	out := make([]Invoice, 0, len(invoices))
	for _, inv := range invoices {
		if CanViewInvoice(role, userID, inv) {
			out = append(out, inv)
		}
	}
	return out
}
