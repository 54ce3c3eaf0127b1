package users

import (
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/trabajapp/trabajapp-backend/internal/auth"
	"github.com/trabajapp/trabajapp-backend/pkg/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	_ = godotenv.Load()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is empty")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Exec("TRUNCATE TABLE users RESTART IDENTITY CASCADE").Error; err != nil {
			t.Logf("truncate failed (ignored): %v", err)
		}
	})
	return db
}

func seedUser(t *testing.T, db *gorm.DB, typ models.UserType) models.User {
	t.Helper()
	u := models.User{
		ID:        uuid.New(),
		Email:     fmt.Sprintf("u+%s@test.local", uuid.NewString()),
		UserType:  typ,
		FirstName: "Ana",
		LastName:  "García",
		Phone:     "+5493415551234",
		IsActive:  true,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatal(err)
	}
	return u
}

func injectAuth(userID uuid.UUID, role string) fiber.Handler {
	id := userID.String()
	return func(c *fiber.Ctx) error {
		c.Locals("userID", id)
		c.Locals("role", role)
		return c.Next()
	}
}

func newTestApp(h *Handler, userID uuid.UUID, role string) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: auth.ErrorHandler})
	app.Use(injectAuth(userID, role))

	app.Put("/api/users/me", h.UpdateMe)
	app.Delete("/api/users/me", h.DeactivateMe)
	app.Get("/api/users/:id", h.GetPublicProfile)

	return app
}

func Test_UpdateMe_PartialUpdateWithLocation(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, models.UserClient)
	app := newTestApp(NewHandler(db), u.ID, string(models.UserClient))

	body := `{"city":"Funes","address":"Mitre 42","latitude":-32.915,"longitude":-60.810}`
	req := httptest.NewRequest("PUT", "/api/users/me", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != 200 {
		t.Fatalf("got %d", resp.StatusCode)
	}

	var stored models.User
	if err := db.First(&stored, "id = ?", u.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.City != "Funes" || stored.Address != "Mitre 42" {
		t.Fatalf("not updated: %+v", stored)
	}
	if stored.Latitude == nil || *stored.Latitude != -32.915 {
		t.Fatalf("latitude = %+v", stored.Latitude)
	}
	// Untouched fields survive a partial update.
	if stored.FirstName != "Ana" || stored.Phone != "+5493415551234" {
		t.Fatalf("unrelated fields changed: %+v", stored)
	}
}

func Test_UpdateMe_RejectsLoneCoordinate(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, models.UserClient)
	app := newTestApp(NewHandler(db), u.ID, string(models.UserClient))

	req := httptest.NewRequest("PUT", "/api/users/me", strings.NewReader(`{"latitude":-32.9}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req)
	if resp.StatusCode != 400 {
		t.Fatalf("got %d, want 400", resp.StatusCode)
	}
}

func Test_DeactivateMe_SoftDeactivates(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, models.UserClient)
	app := newTestApp(NewHandler(db), u.ID, string(models.UserClient))

	resp, _ := app.Test(httptest.NewRequest("DELETE", "/api/users/me", nil))
	if resp.StatusCode != 200 {
		t.Fatalf("got %d", resp.StatusCode)
	}

	var stored models.User
	if err := db.First(&stored, "id = ?", u.ID).Error; err != nil {
		t.Fatal(err)
	}
	if stored.IsActive {
		t.Fatal("account still active")
	}
	if stored.Email == u.Email || !strings.HasPrefix(stored.Email, "deleted_") {
		t.Fatalf("email not rewritten: %q", stored.Email)
	}
	if stored.Phone != "" {
		t.Fatalf("phone kept: %q", stored.Phone)
	}

	// Second delete finds no active row.
	resp, _ = app.Test(httptest.NewRequest("DELETE", "/api/users/me", nil))
	if resp.StatusCode != 404 {
		t.Fatalf("second delete got %d, want 404", resp.StatusCode)
	}
}

func Test_DeactivatedAccountCannotLogin(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, models.UserClient)
	app := newTestApp(NewHandler(db), u.ID, string(models.UserClient))

	if resp, _ := app.Test(httptest.NewRequest("DELETE", "/api/users/me", nil)); resp.StatusCode != 200 {
		t.Fatalf("deactivate got %d", resp.StatusCode)
	}

	var cnt int64
	if err := db.Model(&models.User{}).
		Where("id = ? AND is_active = ?", u.ID, true).
		Count(&cnt).Error; err != nil {
		t.Fatal(err)
	}
	if cnt != 0 {
		t.Fatal("login lookup would still match the deactivated account")
	}
}

func Test_GetPublicProfile(t *testing.T) {
	db := openTestDB(t)
	u := seedUser(t, db, models.UserProfessional)
	viewer := seedUser(t, db, models.UserClient)
	app := newTestApp(NewHandler(db), viewer.ID, string(models.UserClient))

	resp, _ := app.Test(httptest.NewRequest("GET", "/api/users/"+u.ID.String(), nil))
	if resp.StatusCode != 200 {
		t.Fatalf("got %d", resp.StatusCode)
	}
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	if out["first_name"] != "Ana" {
		t.Fatalf("unexpected body: %v", out)
	}
	if _, leaked := out["email"]; leaked {
		t.Fatal("email exposed on public profile")
	}

	// Deactivated accounts disappear from public lookups.
	if err := db.Model(&models.User{}).Where("id = ?", u.ID).
		Update("is_active", false).Error; err != nil {
		t.Fatal(err)
	}
	resp, _ = app.Test(httptest.NewRequest("GET", "/api/users/"+u.ID.String(), nil))
	if resp.StatusCode != 404 {
		t.Fatalf("got %d, want 404", resp.StatusCode)
	}
}
