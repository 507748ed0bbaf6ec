package service

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"go.uber.org/zap"
)

const minPasswordLength = 6

type AccountRepository interface {
	ListCustomers(ctx context.Context, p store.ListParams) (*store.Page[models.Customer], error)
	GetCustomerByID(ctx context.Context, id int64) (*models.Customer, error)
	GetCustomerByEmail(ctx context.Context, email string) (*models.Customer, error)
	CreateCustomer(ctx context.Context, c *models.Customer) error
	UpdateCustomer(ctx context.Context, c *models.Customer) error
	DeleteCustomer(ctx context.Context, id int64) error

	ListStaff(ctx context.Context, p store.ListParams) (*store.Page[models.Staff], error)
	GetStaffByID(ctx context.Context, id int64) (*models.Staff, error)
	GetStaffByEmail(ctx context.Context, email string) (*models.Staff, error)
	CreateStaff(ctx context.Context, st *models.Staff) error
	UpdateStaff(ctx context.Context, st *models.Staff) error
	DeleteStaff(ctx context.Context, id int64) error
	CountStaff(ctx context.Context) (int64, error)
}

// TokenIssuer is implemented by *auth.Manager.
type TokenIssuer interface {
	Issue(id int64, role string) (string, error)
}

// AccountService manages customers and staff and signs them in
type AccountService struct {
	repo   AccountRepository
	tokens TokenIssuer
}

func NewAccountService(repo AccountRepository, tokens TokenIssuer) *AccountService {
	return &AccountService{repo: repo, tokens: tokens}
}

// LoginRequest is the body of both login endpoints
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Session is returned after a successful login or registration
type Session struct {
	Token   string      `json:"token"`
	Role    string      `json:"role"`
	Account interface{} `json:"account"`
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperr.InvalidRequest("email is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", apperr.InvalidRequest("email is not valid")
	}
	return email, nil
}

func hashPassword(plain string) (string, error) {
	if len(plain) < minPasswordLength {
		return "", apperr.InvalidRequest("password must be at least %d characters", minPasswordLength)
	}
	hash, err := auth.HashPassword(plain)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, err, "failed to hash password")
	}
	return hash, nil
}

var errBadCredentials = apperr.Unauthorized("invalid email or password")

// LoginStaff signs in an active staff member.
func (s *AccountService) LoginStaff(ctx context.Context, req *LoginRequest) (*Session, error) {
	st, err := s.repo.GetStaffByEmail(ctx, strings.TrimSpace(req.Email))
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if !auth.CheckPassword(st.PasswordHash, req.Password) {
		return nil, errBadCredentials
	}
	if st.Status != models.StaffActive {
		return nil, apperr.Forbidden("account is inactive")
	}

	token, err := s.tokens.Issue(st.ID, string(st.Role))
	if err != nil {
		return nil, err
	}
	util.LoggerFromContext(ctx).Info("Staff signed in", zap.Int64("staff_id", st.ID))
	return &Session{Token: token, Role: string(st.Role), Account: st}, nil
}

// LoginCustomer signs in a storefront customer.
func (s *AccountService) LoginCustomer(ctx context.Context, req *LoginRequest) (*Session, error) {
	c, err := s.repo.GetCustomerByEmail(ctx, strings.TrimSpace(req.Email))
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}
	if c.PasswordHash == "" || !auth.CheckPassword(c.PasswordHash, req.Password) {
		return nil, errBadCredentials
	}

	token, err := s.tokens.Issue(c.ID, models.RoleCustomer)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Role: models.RoleCustomer, Account: c}, nil
}

// RegisterRequest is the storefront sign-up body
type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
}

// RegisterCustomer creates a customer account and signs it in.
func (s *AccountService) RegisterCustomer(ctx context.Context, req *RegisterRequest) (*Session, error) {
	password := req.Password
	in := &CustomerInput{
		Name:     &req.Name,
		Email:    &req.Email,
		Phone:    &req.Phone,
		Address:  &req.Address,
		Password: &password,
	}
	c, err := s.CreateCustomer(ctx, in)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(c.ID, models.RoleCustomer)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Role: models.RoleCustomer, Account: c}, nil
}

// CustomerInput carries the writable customer fields
type CustomerInput struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	Password *string `json:"password"`
}

func (in *CustomerInput) apply(c *models.Customer) error {
	if in.Name != nil {
		c.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return err
		}
		c.Email = email
	}
	if in.Phone != nil {
		c.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Address != nil {
		c.Address = strings.TrimSpace(*in.Address)
	}
	if in.Password != nil {
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return err
		}
		c.PasswordHash = hash
	}
	if c.Name == "" {
		return apperr.InvalidRequest("name is required")
	}
	if c.Email == "" {
		return apperr.InvalidRequest("email is required")
	}
	return nil
}

func (s *AccountService) ListCustomers(ctx context.Context, p store.ListParams) (*store.Page[models.Customer], error) {
	return s.repo.ListCustomers(ctx, p)
}

func (s *AccountService) GetCustomer(ctx context.Context, id int64) (*models.Customer, error) {
	return s.repo.GetCustomerByID(ctx, id)
}

func (s *AccountService) CreateCustomer(ctx context.Context, in *CustomerInput) (*models.Customer, error) {
	c := &models.Customer{}
	if err := in.apply(c); err != nil {
		return nil, err
	}
	if err := s.repo.CreateCustomer(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *AccountService) UpdateCustomer(ctx context.Context, id int64, in *CustomerInput) (*models.Customer, error) {
	c, err := s.repo.GetCustomerByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(c); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCustomer(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *AccountService) DeleteCustomer(ctx context.Context, id int64) error {
	return s.repo.DeleteCustomer(ctx, id)
}

// StaffInput carries the writable staff fields
type StaffInput struct {
	Name        *string             `json:"name"`
	Email       *string             `json:"email"`
	Phone       *string             `json:"phone"`
	Role        *models.StaffRole   `json:"role"`
	Status      *models.StaffStatus `json:"status"`
	Routes      *models.StringList  `json:"routes"`
	Password    *string             `json:"password"`
	JoiningDate Optional[time.Time] `json:"joiningDate"`
}

func (in *StaffInput) apply(st *models.Staff) error {
	if in.Name != nil {
		st.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return err
		}
		st.Email = email
	}
	if in.Phone != nil {
		st.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Role != nil {
		st.Role = *in.Role
	}
	if in.Status != nil {
		st.Status = *in.Status
	}
	if in.Routes != nil {
		st.Routes = *in.Routes
	}
	if in.Password != nil {
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return err
		}
		st.PasswordHash = hash
	}
	if in.JoiningDate.Set {
		st.JoiningDate = in.JoiningDate.Value
	}

	switch {
	case st.Name == "":
		return apperr.InvalidRequest("name is required")
	case st.Email == "":
		return apperr.InvalidRequest("email is required")
	case st.PasswordHash == "":
		return apperr.InvalidRequest("password is required")
	case !st.Role.Valid():
		return apperr.InvalidRequest("role must be one of super_admin, admin, manager, cashier")
	case !st.Status.Valid():
		return apperr.InvalidRequest("status must be active or inactive")
	}
	if st.Routes == nil {
		st.Routes = models.StringList{}
	}
	return nil
}

func (s *AccountService) ListStaff(ctx context.Context, p store.ListParams) (*store.Page[models.Staff], error) {
	return s.repo.ListStaff(ctx, p)
}

func (s *AccountService) GetStaff(ctx context.Context, id int64) (*models.Staff, error) {
	return s.repo.GetStaffByID(ctx, id)
}

func (s *AccountService) CreateStaff(ctx context.Context, in *StaffInput) (*models.Staff, error) {
	st := &models.Staff{Status: models.StaffActive}
	if err := in.apply(st); err != nil {
		return nil, err
	}
	if err := s.repo.CreateStaff(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *AccountService) UpdateStaff(ctx context.Context, id int64, in *StaffInput) (*models.Staff, error) {
	st, err := s.repo.GetStaffByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.apply(st); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateStaff(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *AccountService) DeleteStaff(ctx context.Context, id int64) error {
	return s.repo.DeleteStaff(ctx, id)
}

// SeedAdmin creates the first super admin. It does nothing when any staff
// account already exists and reports whether an account was created.
func (s *AccountService) SeedAdmin(ctx context.Context, name, email, password string) (bool, error) {
	n, err := s.repo.CountStaff(ctx)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	role := models.RoleSuperAdmin
	_, err = s.CreateStaff(ctx, &StaffInput{
		Name:     &name,
		Email:    &email,
		Role:     &role,
		Password: &password,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
