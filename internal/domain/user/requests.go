package user

// Request schemas. Binding tags are enforced by the HTTP validator before a
// handler runs.

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required,min=2"`
	Role     Role   `json:"role" binding:"omitempty,oneof=USER ADMIN"`
}

func (r RegisterRequest) Input() CreateInput {
	return CreateInput{Email: r.Email, Password: r.Password, Name: r.Name, Role: r.Role}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// a partial update: absent fields stay nil and are not written
type UpdateProfileRequest struct {
	Email *string `json:"email" binding:"omitempty,email"`
	Name  *string `json:"name" binding:"omitempty,min=2"`
	Role  *Role   `json:"role" binding:"omitempty,oneof=USER ADMIN"`
}

func (r UpdateProfileRequest) Input() UpdateInput {
	return UpdateInput{Email: r.Email, Name: r.Name, Role: r.Role}
}

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	MaxPage      = 1000000
)

type ListUsersQuery struct {
	Page   *int   `form:"page" binding:"omitempty,min=1,max=1000000"`
	Limit  *int   `form:"limit" binding:"omitempty,min=1,max=100"`
	Search string `form:"search" binding:"omitempty,max=100"`
}

// Filter applies the defaults for absent page/limit.
func (q ListUsersQuery) Filter() ListFilter {
	f := ListFilter{Page: DefaultPage, Limit: DefaultLimit, Search: q.Search}
	if q.Page != nil {
		f.Page = *q.Page
	}
	if q.Limit != nil {
		f.Limit = *q.Limit
	}
	return f
}

type IDParam struct {
	ID string `uri:"id" binding:"required,uuid"`
}
