package identity

import (
    "context"
    "encoding/json"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"

    "github.com/gofiber/fiber/v2"
)

func TestHandlerAuthenticate(t *testing.T) {
    repo := NewMemoryRepository()
    svc := NewService(repo)
    user, err := svc.Register(context.Background(), Credentials{Email: "reader@example.com", Username: "reader", Password: "correct-horse"})
    if err != nil {
        t.Fatalf("register: %v", err)
    }

    app := fiber.New()
    h := NewHandler(svc)
    app.Post("/identity/authenticate", h.Authenticate)

    req := httptest.NewRequest(http.MethodPost, "/identity/authenticate",
        strings.NewReader(`{"email":"reader@example.com","password":"correct-horse"}`))
    req.Header.Set("Content-Type", "application/json")
    resp, err := app.Test(req)
    if err != nil {
        t.Fatalf("request: %v", err)
    }
    if resp.StatusCode != http.StatusOK {
        t.Fatalf("expected 200, got %d", resp.StatusCode)
    }
    var out authResponse
    if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
        t.Fatalf("decode: %v", err)
    }
    if out.UserID != user.ID || out.Role != RoleMember {
        t.Fatalf("unexpected response: %+v", out)
    }

    req = httptest.NewRequest(http.MethodPost, "/identity/authenticate",
        strings.NewReader(`{"email":"reader@example.com","password":"wrong"}`))
    req.Header.Set("Content-Type", "application/json")
    resp, err = app.Test(req)
    if err != nil {
        t.Fatalf("request: %v", err)
    }
    if resp.StatusCode != http.StatusUnauthorized {
        t.Fatalf("expected 401, got %d", resp.StatusCode)
    }
}
