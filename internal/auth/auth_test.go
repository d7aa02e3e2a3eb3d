package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswords(t *testing.T) {
	Convey("Given a hashed password", t, func() {
		hash, err := HashPassword("hunter2", bcrypt.MinCost)
		So(err, ShouldBeNil)
		So(hash, ShouldNotEqual, "hunter2")

		Convey("The right password checks out", func() {
			So(CheckPassword(hash, "hunter2"), ShouldBeNil)
		})

		Convey("A wrong password is rejected", func() {
			So(errors.Is(CheckPassword(hash, "hunter3"), ErrInvalidCredentials), ShouldBeTrue)
		})

		Convey("A garbage hash is rejected as invalid credentials", func() {
			So(errors.Is(CheckPassword("not-a-hash", "hunter2"), ErrInvalidCredentials), ShouldBeTrue)
		})
	})

	Convey("Blank passwords are refused", t, func() {
		_, err := HashPassword("", bcrypt.MinCost)
		So(errors.Is(err, ErrEmptyPassword), ShouldBeTrue)
	})

	Convey("An out-of-range cost falls back to the default", t, func() {
		hash, err := HashPassword("pw", 99)
		So(err, ShouldBeNil)
		cost, err := bcrypt.Cost([]byte(hash))
		So(err, ShouldBeNil)
		So(cost, ShouldEqual, bcrypt.DefaultCost)
	})
}

func TestIssuer(t *testing.T) {
	Convey("Given an issuer with a fixed clock", t, func() {
		now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		iss, err := NewIssuer([]byte("s3cret"), WithTTL(time.Hour), WithClock(clock))
		So(err, ShouldBeNil)

		token, err := iss.Issue("user-1", "alice", "fan")
		So(err, ShouldBeNil)
		So(strings.Count(token, "."), ShouldEqual, 2)

		Convey("Verify returns the claims", func() {
			claims, err := iss.Verify(token)
			So(err, ShouldBeNil)
			So(claims.UserID(), ShouldEqual, "user-1")
			So(claims.Username, ShouldEqual, "alice")
			So(claims.Role, ShouldEqual, "fan")
			So(claims.ID, ShouldNotBeEmpty)
		})

		Convey("Each token carries the role it was issued with", func() {
			team, err := iss.Issue("op-1", "Lakers", "team")
			So(err, ShouldBeNil)
			claims, err := iss.Verify(team)
			So(err, ShouldBeNil)
			So(claims.Role, ShouldEqual, "team")
			So(claims.Username, ShouldEqual, "Lakers")
		})

		Convey("Expired tokens are rejected", func() {
			later, _ := NewIssuer([]byte("s3cret"), WithClock(func() time.Time { return now.Add(2 * time.Hour) }))
			_, err := later.Verify(token)
			So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
		})

		Convey("Tokens signed with another key are rejected", func() {
			other, _ := NewIssuer([]byte("other"), WithClock(clock))
			_, err := other.Verify(token)
			So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
		})

		Convey("Tokens from another issuer are rejected", func() {
			other, _ := NewIssuer([]byte("s3cret"), WithClock(clock), WithIssuer("someone-else"))
			_, err := other.Verify(token)
			So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
		})

		Convey("Garbage is rejected", func() {
			_, err := iss.Verify("not.a.token")
			So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
		})
	})

	Convey("An empty secret is refused", t, func() {
		_, err := NewIssuer(nil)
		So(errors.Is(err, ErrEmptySecret), ShouldBeTrue)
	})
}
