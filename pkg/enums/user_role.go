package enums

// UserRole is carried in access tokens minted by the auth service.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

var userRoles = newSet("user role", UserRoleCustomer, UserRoleAdmin)

func (v UserRole) String() string { return string(v) }

func (v UserRole) IsValid() bool { return userRoles.has(v) }

func ParseUserRole(value string) (UserRole, error) { return userRoles.parse(value) }
