package auth

import (
	"testing"
	"time"
)

func TestRole_Valid(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleTeacher, RoleStudent} {
		if !r.Valid() {
			t.Errorf("%q should be valid", r)
		}
	}
	for _, r := range []Role{RoleNone, Role("superuser")} {
		if r.Valid() {
			t.Errorf("%q should not be valid", r)
		}
	}
}

func TestProfile_HasRole(t *testing.T) {
	admin := Profile{ID: "p-1", Role: RoleAdmin}
	if !admin.HasRole(RoleAdmin) {
		t.Fatal("admin profile should have admin role")
	}
	if admin.HasRole(RoleStudent) {
		t.Fatal("admin profile should not have student role")
	}
	if (Profile{ID: "p-2"}).HasRole(RoleNone) {
		t.Fatal("RoleNone must never match")
	}
}

func TestIdentity_SameSession(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	a := Identity{UserID: "u-1", Email: "a@gpc.edu", Token: "t-1", ExpiresAt: exp}

	refreshedExpiry := a
	refreshedExpiry.ExpiresAt = exp.Add(time.Hour)
	if !a.SameSession(refreshedExpiry) {
		t.Fatal("expiry change should not start a new session")
	}

	newToken := a
	newToken.Token = "t-2"
	if a.SameSession(newToken) {
		t.Fatal("a new token is a new session")
	}

	otherUser := a
	otherUser.UserID = "u-2"
	if a.SameSession(otherUser) {
		t.Fatal("a different user is a different session")
	}
}

func TestIdentity_Expired(t *testing.T) {
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		exp  time.Time
		want bool
	}{
		{name: "no expiry", exp: time.Time{}, want: false},
		{name: "future", exp: now.Add(time.Second), want: false},
		{name: "exactly now", exp: now, want: true},
		{name: "past", exp: now.Add(-time.Second), want: true},
	}
	for _, tt := range tests {
		if got := (Identity{ExpiresAt: tt.exp}).Expired(now); got != tt.want {
			t.Errorf("%s: Expired() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
