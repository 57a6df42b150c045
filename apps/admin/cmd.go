package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/shule/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	usrRepo user.Repository
	usrSvc  user.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  addadmin -username USERNAME -email EMAIL     - create (or promote) an admin account. The password will be prompted next.")
	fmt.Println("  approveuser -username USERNAME|EMAIL         - approve a pending account")
	fmt.Println("  rejectuser -username USERNAME|EMAIL          - reject a pending account")
	fmt.Println("  resetpassword -username USERNAME|EMAIL       - reset user's password. The password will be prompted next.")
	fmt.Println("  migrate COMMAND [args]                       - run DB migrations (up, down, status, version, ...)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addAdminCmd := flag.NewFlagSet("addadmin", flag.ExitOnError)
	addAdminUname := addAdminCmd.String("username", "", "The admin's username.")
	addAdminEmail := addAdminCmd.String("email", "", "The admin's email.")

	approveUserCmd := flag.NewFlagSet("approveuser", flag.ExitOnError)
	approveUserUname := approveUserCmd.String("username", "", "The user's username or email.")

	rejectUserCmd := flag.NewFlagSet("rejectuser", flag.ExitOnError)
	rejectUserUname := rejectUserCmd.String("username", "", "The user's username or email.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	switch args[1] {
	case "addadmin":
		if err := addAdminCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addAdminUname == "" || *addAdminEmail == "" {
			addAdminCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addAdminCmd.Usage()
			return errHelp
		}
		return cli.addAdmin(*addAdminUname, *addAdminEmail, pwd)
	case "approveuser":
		if err := approveUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *approveUserUname == "" {
			approveUserCmd.Usage()
			return errHelp
		}
		return cli.approveUser(*approveUserUname)
	case "rejectuser":
		if err := rejectUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *rejectUserUname == "" {
			rejectUserCmd.Usage()
			return errHelp
		}
		return cli.rejectUser(*rejectUserUname)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordUname, pwd)
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
