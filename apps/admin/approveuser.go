package main

import "context"

func (cli *commandLine) approveUser(uname string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	_, err = cli.usrSvc.Approve(ctx, usr.ID)
	return err
}

func (cli *commandLine) rejectUser(uname string) error {
	ctx := context.Background()
	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if err != nil {
		return err
	}
	_, err = cli.usrSvc.Reject(ctx, usr.ID)
	return err
}
