package auth

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/trabajapp/trabajapp-backend/pkg/models"
	"github.com/trabajapp/trabajapp-backend/pkg/validation"
)

/* ================================ DTOs ================================= */

// Request body for /signup
type SignupRequest struct {
	UserType  string `json:"user_type" validate:"required,oneof=client professional"`
	FirstName string `json:"first_name" validate:"required,min=2,max=60"`
	LastName  string `json:"last_name" validate:"required,min=2,max=60"`
	Email     string `json:"email" validate:"required,email,max=120"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
	Phone     string `json:"phone" validate:"omitempty,max=30"`
	// Optional home/base location; professionals need it to appear in search
	Address   string   `json:"address" validate:"omitempty,max=200"`
	Latitude  *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude *float64 `json:"longitude" validate:"omitempty,longitude"`
	City      string   `json:"city" validate:"omitempty,max=60"`
}

// Request body for /login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=120"`
	Password string `json:"password" validate:"required"`
}

// Standard auth response
type AuthResponse struct {
	Token    string `json:"token"`
	UserType string `json:"user_type"`
}

// Profile response for /me
type UserProfileResponse struct {
	ID          uuid.UUID       `json:"id"`
	Email       string          `json:"email"`
	UserType    models.UserType `json:"user_type"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	Phone       string          `json:"phone"`
	City        string          `json:"city"`
	RatingAvg   float64         `json:"rating_avg"`
	RatingCount int             `json:"rating_count"`
	CreatedAt   time.Time       `json:"created_at"`
}

/* ============================== Handler ================================= */

type Handler struct{ db *gorm.DB }

func NewHandler(db *gorm.DB) *Handler { return &Handler{db: db} }

/* =============================== Signup ================================= */

// @Summary      Sign up
// @Description  Register a new user (client or professional)
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  SignupRequest  true  "Signup payload"
// @Success      201      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      409      {object}  models.ErrorResponse  "email already exists"
// @Router       /signup [post]
func (h *Handler) Signup(c *fiber.Ctx) error {
	var in SignupRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	// Normalize email
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	// Validate request (Laravel-like error shape)
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	// Hash password
	hash, _ := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)

	u := models.User{
		Email:        in.Email,
		PasswordHash: string(hash),
		UserType:     models.UserType(in.UserType),
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		Address:      strings.TrimSpace(in.Address),
		Latitude:     in.Latitude,
		Longitude:    in.Longitude,
		IsActive:     true,
	}
	if in.City != "" {
		u.City = in.City
	}

	// Professionals get an empty profile row alongside the account, so
	// profile updates are always an UPDATE.
	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&u).Error; err != nil {
			return err
		}
		if u.UserType == models.UserProfessional {
			return tx.Create(&models.ProfessionalProfile{UserID: u.ID}).Error
		}
		return nil
	})
	if err != nil {
		return fiber.NewError(fiber.StatusConflict, "email already exists")
	}

	// Issue JWT
	token, _ := IssueToken(u.ID.String(), string(u.UserType))
	return c.Status(fiber.StatusCreated).JSON(AuthResponse{Token: token, UserType: string(u.UserType)})
}

/* ================================ Login ================================= */

// @Summary      Login
// @Description  Authenticate and receive a JWT
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        payload  body  LoginRequest  true  "Login payload"
// @Success      200      {object}  AuthResponse
// @Failure      400      {object}  models.ValidationErrorResponse
// @Failure      401      {object}  models.ErrorResponse
// @Router       /login [post]
func (h *Handler) Login(c *fiber.Ctx) error {
	var in LoginRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.ErrBadRequest
	}

	// Normalize email
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	// Validate request
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	// Find user by email; deactivated accounts cannot sign in
	var u models.User
	if err := h.db.Where("email = ? AND is_active = ?", in.Email, true).First(&u).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	// Verify password
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return fiber.ErrUnauthorized
	}

	// Issue JWT
	token, _ := IssueToken(u.ID.String(), string(u.UserType))
	return c.JSON(AuthResponse{Token: token, UserType: string(u.UserType)})
}

/* ================================= Me =================================== */

// @Summary      Get current user profile
// @Description  Return the profile of the authenticated user
// @Tags         auth
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  UserProfileResponse
// @Failure      401  {object}  models.ErrorResponse
// @Router       /me [get]
func (h *Handler) Me(c *fiber.Ctx) error {
	userID := c.Locals("userID")
	if userID == nil {
		return fiber.ErrUnauthorized
	}

	// Load user by ID from context (set by auth middleware)
	var u models.User
	if err := h.db.First(&u, "id = ?", userID).Error; err != nil {
		return fiber.ErrUnauthorized
	}

	// Map to a stable public profile shape
	resp := UserProfileResponse{
		ID:          u.ID,
		Email:       u.Email,
		UserType:    u.UserType,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Phone:       u.Phone,
		City:        u.City,
		RatingAvg:   u.RatingAvg,
		RatingCount: u.RatingCount,
		CreatedAt:   u.CreatedAt,
	}
	return c.JSON(resp)
}
