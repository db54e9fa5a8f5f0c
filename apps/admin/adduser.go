package main

import (
	"context"
	"fmt"

	"github.com/trezcool/finadmin/core"
	"github.com/trezcool/finadmin/core/user"
)

// addUser creates an active user.User after validating it like the API does.
func (cli *commandLine) addUser(name, uname, email, roles, pwd string) error {
	ctx := context.Background()
	nu := user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Roles:           core.SplitList(roles, true /* lower */),
	}
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return err
	}

	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "user #%d %q created\n", usr.ID, usr.Name)
	return nil
}
