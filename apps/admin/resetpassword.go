package main

import (
	"context"
	"fmt"

	"github.com/trezcool/finadmin/core/user"
)

func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}

	if err = (user.ResetUserPassword{Password: pwd, PasswordConfirm: pwd}).Validate(cli.validate); err != nil {
		return err
	}
	if err = user.CheckPassword(pwd, usr.Name, usr.Username, usr.Email); err != nil {
		return err
	}

	if _, err = cli.usrSvc.SetPassword(ctx, usr, pwd); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "password of %q reset\n", uname)
	return nil
}
