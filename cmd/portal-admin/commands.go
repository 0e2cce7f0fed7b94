package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/gpchangipur/portal/internal/adapters/localauth"
	"github.com/gpchangipur/portal/internal/core"
	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/migrate"
)

func (a *app) migrateCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if list {
				versions, err := migrate.Versions()
				if err != nil {
					return err
				}
				for _, v := range versions {
					fmt.Fprintln(a.out, v)
				}
				return nil
			}
			s, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			applied, err := s.Migrate(cmd.Context())
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if len(applied) == 0 {
				fmt.Fprintln(a.out, "schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(a.out, "applied %s\n", v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "List embedded migration versions without connecting")
	return cmd
}

func (a *app) usersCmd() *cobra.Command {
	users := &cobra.Command{Use: "users", Short: "Manage local sign-in accounts"}

	var email, password, role, name string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account and its profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag("email", email); err != nil {
				return err
			}
			if err := requireFlag("password", password); err != nil {
				return err
			}
			r, err := parseRoleFlag(role)
			if err != nil {
				return err
			}
			s, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			hash, err := localauth.HashPassword(password, s.BcryptCost)
			if err != nil {
				return err
			}
			u, err := s.Users.Create(cmd.Context(), strings.ToLower(strings.TrimSpace(email)), hash)
			if err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			if _, err := s.Profiles.Upsert(cmd.Context(), domainauth.Profile{
				ID:       u.ID,
				Email:    u.Email,
				FullName: name,
				Role:     r,
			}); err != nil {
				return fmt.Errorf("create profile: %w", err)
			}
			fmt.Fprintf(a.out, "created user %s (%s) with role %s\n", u.ID, u.Email, roleLabel(r))
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "Sign-in email")
	create.Flags().StringVar(&password, "password", "", "Initial password")
	create.Flags().StringVar(&role, "role", string(domainauth.RoleAdmin), "Profile role: admin|teacher|student|none")
	create.Flags().StringVar(&name, "name", "", "Full name shown on the dashboard")

	var spEmail, spPassword string
	setPassword := &cobra.Command{
		Use:   "set-password",
		Short: "Replace the password of an existing account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag("email", spEmail); err != nil {
				return err
			}
			if err := requireFlag("password", spPassword); err != nil {
				return err
			}
			s, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			u, err := s.Users.GetByEmail(cmd.Context(), strings.ToLower(strings.TrimSpace(spEmail)))
			if err != nil {
				if errors.Is(err, core.ErrUserNotFound) {
					return fmt.Errorf("no account for %s", spEmail)
				}
				return err
			}
			hash, err := localauth.HashPassword(spPassword, s.BcryptCost)
			if err != nil {
				return err
			}
			if err := s.Users.UpdatePasswordHash(cmd.Context(), u.ID, hash); err != nil {
				return fmt.Errorf("update password: %w", err)
			}
			fmt.Fprintf(a.out, "password updated for %s\n", u.Email)
			return nil
		},
	}
	setPassword.Flags().StringVar(&spEmail, "email", "", "Sign-in email")
	setPassword.Flags().StringVar(&spPassword, "password", "", "New password")

	users.AddCommand(create, setPassword)
	return users
}

func (a *app) profilesCmd() *cobra.Command {
	profiles := &cobra.Command{Use: "profiles", Short: "Inspect and change authorization profiles"}

	var roleID, role string
	setRole := &cobra.Command{
		Use:   "set-role",
		Short: "Assign a role; none revokes portal access",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag("id", roleID); err != nil {
				return err
			}
			if err := requireFlag("role", role); err != nil {
				return err
			}
			r, err := parseRoleFlag(role)
			if err != nil {
				return err
			}
			s, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.Profiles.SetRole(cmd.Context(), roleID, r); err != nil {
				return fmt.Errorf("set role: %w", err)
			}
			fmt.Fprintf(a.out, "profile %s now has role %s\n", roleID, roleLabel(r))
			return nil
		},
	}
	setRole.Flags().StringVar(&roleID, "id", "", "Profile id (the identity user id)")
	setRole.Flags().StringVar(&role, "role", "", "admin|teacher|student|none")

	var showID string
	show := &cobra.Command{
		Use:   "show",
		Short: "Print one profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := requireFlag("id", showID); err != nil {
				return err
			}
			s, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			p, err := s.Profiles.GetByID(cmd.Context(), showID)
			if err != nil {
				return fmt.Errorf("get profile: %w", err)
			}
			return a.printProfile(p)
		},
	}
	show.Flags().StringVar(&showID, "id", "", "Profile id")

	count := &cobra.Command{
		Use:   "count",
		Short: "Count profiles per role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			counts, err := s.Profiles.Count(cmd.Context())
			if err != nil {
				return err
			}
			roles := make([]domainauth.Role, 0, len(counts))
			for r := range counts {
				roles = append(roles, r)
			}
			sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ROLE\tPROFILES")
			for _, r := range roles {
				fmt.Fprintf(tw, "%s\t%d\n", roleLabel(r), counts[r])
			}
			return tw.Flush()
		},
	}

	profiles.AddCommand(setRole, show, count)
	return profiles
}

func (a *app) printProfile(p domainauth.Profile) error {
	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	lastLogin := "never"
	if p.LastLogin != nil {
		lastLogin = p.LastLogin.UTC().Format(time.RFC3339)
	}
	fmt.Fprintf(tw, "ID:\t%s\n", p.ID)
	fmt.Fprintf(tw, "Email:\t%s\n", p.Email)
	fmt.Fprintf(tw, "Name:\t%s\n", p.FullName)
	fmt.Fprintf(tw, "Contact:\t%s\n", p.ContactNumber)
	fmt.Fprintf(tw, "Role:\t%s\n", roleLabel(p.Role))
	fmt.Fprintf(tw, "Last login:\t%s\n", lastLogin)
	return tw.Flush()
}

func parseRoleFlag(s string) (domainauth.Role, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "none" {
		return domainauth.RoleNone, nil
	}
	r := domainauth.Role(v)
	if !r.Valid() {
		return domainauth.RoleNone, fmt.Errorf("unknown role %q (valid: admin, teacher, student, none)", s)
	}
	return r, nil
}

func roleLabel(r domainauth.Role) string {
	if r == domainauth.RoleNone {
		return "none"
	}
	return string(r)
}
