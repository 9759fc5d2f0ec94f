package identity

import (
    "context"
    "errors"
    "testing"
)

func TestRegisterAndAuthenticate(t *testing.T) {
    repo := NewMemoryRepository()
    svc := NewService(repo)

    ctx := context.Background()
    user, err := svc.Register(ctx, Credentials{Email: "Reader@Example.com", Username: "reader", Password: "correct-horse"})
    if err != nil {
        t.Fatalf("register: %v", err)
    }

    if user.Role != RoleMember {
        t.Fatalf("expected member role, got %s", user.Role)
    }
    if user.Email != "reader@example.com" {
        t.Fatalf("expected normalised email, got %s", user.Email)
    }

    authed, err := svc.Authenticate(ctx, Credentials{Email: "reader@example.com", Password: "correct-horse"})
    if err != nil {
        t.Fatalf("authenticate: %v", err)
    }
    if authed.ID != user.ID {
        t.Fatalf("expected user %s, got %s", user.ID, authed.ID)
    }
}

func TestAuthenticateWrongPassword(t *testing.T) {
    repo := NewMemoryRepository()
    svc := NewService(repo)
    ctx := context.Background()

    if _, err := svc.Register(ctx, Credentials{Email: "writer@example.com", Username: "writer", Password: "correct-horse"}); err != nil {
        t.Fatalf("register: %v", err)
    }

    if _, err := svc.Authenticate(ctx, Credentials{Email: "writer@example.com", Password: "wrong-horse"}); !errors.Is(err, ErrInvalidCredentials) {
        t.Fatalf("expected invalid credentials, got %v", err)
    }
}

func TestRegisterShortPassword(t *testing.T) {
    svc := NewService(NewMemoryRepository())

    if _, err := svc.Register(context.Background(), Credentials{Email: "x@example.com", Username: "x", Password: "short"}); err == nil {
        t.Fatalf("expected password length error")
    }
}
