package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fanspend/internal/adapters/repository"
	service "github.com/okian/fanspend/internal/app"
	"github.com/okian/fanspend/internal/domain/model"
)

func TestAddOperator(t *testing.T) {
	Convey("Given a SQLite database", t, func() {
		dsn := filepath.Join(t.TempDir(), "fanspend.db")
		t.Setenv("FANSPEND_DB_DRIVER", repository.DriverSQLite)
		t.Setenv("FANSPEND_DB_DSN", dsn)
		t.Setenv("FANSPEND_BCRYPT_COST", "4")
		ctx := context.Background()

		Convey("When a team is added with the password on stdin", func() {
			var out bytes.Buffer
			err := run(ctx, []string{"-role", "team", "-login", "Lakers"}, strings.NewReader("purple\n"), &out)

			Convey("Then the team can log in with it", func() {
				So(err, ShouldBeNil)
				So(out.String(), ShouldContainSubstring, `created team "Lakers"`)

				store, err := repository.New(ctx, repository.DriverSQLite, dsn)
				So(err, ShouldBeNil)
				defer func() { _ = store.Close() }()

				sess, err := service.New(store).TeamLogin(ctx, "Lakers", "purple")
				So(err, ShouldBeNil)
				So(sess.Operator.Role, ShouldEqual, model.RoleTeam)
			})

			Convey("Then adding it again fails", func() {
				err := run(ctx, []string{"-role", "team", "-login", "Lakers", "-password", "x"}, strings.NewReader(""), &bytes.Buffer{})
				So(errors.Is(err, service.ErrUsernameTaken), ShouldBeTrue)
			})
		})

		Convey("When the role is not an operator role", func() {
			err := run(ctx, []string{"-role", "fan", "-login", "alice", "-password", "x"}, strings.NewReader(""), &bytes.Buffer{})

			Convey("Then it is invalid input", func() {
				So(errors.Is(err, service.ErrInvalidInput), ShouldBeTrue)
			})
		})
	})
}
