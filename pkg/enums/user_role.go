package enums

// UserRole is the role claim carried by storefront access tokens.
type UserRole string

const (
	UserRoleBuyer  UserRole = "buyer"
	UserRoleVendor UserRole = "vendor"
	UserRoleAdmin  UserRole = "admin"
)

var userRoles = []UserRole{UserRoleBuyer, UserRoleVendor, UserRoleAdmin}

func (u UserRole) String() string { return string(u) }

func (u UserRole) IsValid() bool { return known(userRoles, u) }
