package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/somaplus/darasa/core"
	"github.com/somaplus/darasa/core/account"
	authsvc "github.com/somaplus/darasa/services/auth"
	"github.com/somaplus/darasa/storage/document"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf   *core.Config
	db     *sqlx.DB
	svc    *account.Service
	logger core.Logger
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate                                                  - apply pending DB migrations")
	fmt.Println("  seedprofile -id ID -name NAME [-role ROLE] [-plan PLAN] [-status STATUS] - create or replace a profile")
	fmt.Println("  grantadmin -id ID                                        - create an admin record for an identity")
	fmt.Println("  revokeadmin -id ID                                       - remove an identity's admin record")
	fmt.Println("  mintassertion -id ID [-name NAME]                        - sign a local identity assertion (DEV only)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		return cli.migrate()

	case "seedprofile":
		cmd := flag.NewFlagSet("seedprofile", flag.ExitOnError)
		id := cmd.String("id", "", "The identity id (as issued by the auth provider).")
		name := cmd.String("name", "", "The display name.")
		role := cmd.String("role", account.RoleConsumer, "One of: consumer, tutor, admin.")
		planName := cmd.String("plan", "", "The raw subscription plan name.")
		status := cmd.String("status", "", "The subscription status.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *id == "" || *name == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.seedProfile(*id, *name, *role, *planName, *status)

	case "grantadmin":
		cmd := flag.NewFlagSet("grantadmin", flag.ExitOnError)
		id := cmd.String("id", "", "The identity id.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *id == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.svc.GrantAdmin(context.Background(), *id)

	case "revokeadmin":
		cmd := flag.NewFlagSet("revokeadmin", flag.ExitOnError)
		id := cmd.String("id", "", "The identity id.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *id == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.svc.RevokeAdmin(context.Background(), *id)

	case "mintassertion":
		cmd := flag.NewFlagSet("mintassertion", flag.ExitOnError)
		id := cmd.String("id", "", "The identity id.")
		name := cmd.String("name", "", "The display name.")
		if err := cmd.Parse(args[2:]); err != nil {
			return err
		}
		if *id == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.mintAssertion(*id, *name)

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) migrate() error {
	return document.Migrate(cli.db.DB)
}

func (cli *commandLine) seedProfile(id, name, role, planName, status string) error {
	np := account.NewProfile{
		ID:       id,
		Name:     name,
		Role:     role,
		PlanName: planName,
		Status:   status,
	}
	prof, err := cli.svc.Upsert(context.Background(), np)
	if err != nil {
		return errors.Wrap(err, "seeding profile")
	}
	fmt.Printf("profile %q seeded (role: %s)\n", prof.ID, prof.Role)
	return nil
}

func (cli *commandLine) mintAssertion(id, name string) error {
	if !cli.conf.Debug {
		return errors.New("mintassertion is only available in DEV mode")
	}
	assertion, err := authsvc.GenerateAssertion(cli.conf, account.Identity{ID: id, Name: name}, 24*time.Hour)
	if err != nil {
		return err
	}
	fmt.Println(assertion)
	return nil
}
