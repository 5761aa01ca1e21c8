/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tomoncle/exemplar"
	"github.com/tomoncle/exemplar/database"
	"github.com/tomoncle/exemplar/meta"
	"github.com/tomoncle/exemplar/qbe"
	"github.com/tomoncle/exemplar/repository"
	"github.com/tomoncle/exemplar/types"
)

type demo struct {
	configPath string
	store      string
	stdout     io.Writer

	svc   exemplar.Service[User]
	close func(context.Context) error
}

func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	d := &demo{stdout: stdout}
	rc := &cobra.Command{
		Use:   "exemplar-demo",
		Short: "Query and update user records by example.",
		Long: `exemplar-demo keeps user accounts in SQLite, MySQL, Postgres, MongoDB or
memory and accesses them by example: a partially filled user is the query.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return d.open(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if d.close == nil {
				return nil
			}
			return d.close(cmd.Context())
		},
	}
	rc.PersistentFlags().StringVarP(&d.configPath, "config", "c", "", "YAML configuration file to read from.")
	rc.PersistentFlags().StringVar(&d.store, "store", "sql", "Where records live: sql, mongo or memory.")

	rc.AddCommand(d.newRegisterCommand())
	rc.AddCommand(d.newLoginCommand())
	rc.AddCommand(d.newRenameCommand())
	rc.AddCommand(d.newListCommand())
	rc.AddCommand(d.newScenarioCommand())

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

func (d *demo) config() (*database.Config, error) {
	if d.configPath != "" {
		return database.LoadConfig(d.configPath)
	}
	cfg := database.DefaultConfig()
	cfg.Connection.Type = "sqlite"
	cfg.Connection.DBName = "exemplar-demo"
	cfg.Connection.MaxOpenConns = 1
	cfg.Connection.HealthCheckInterval = 0
	cfg.Connection.EnsureTables = true
	cfg.Mongo.Database = "exemplar"
	return cfg, nil
}

func (d *demo) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := d.config()
	if err != nil {
		return err
	}
	switch d.store {
	case "memory":
		catalog := meta.NewCatalog(meta.WithNaming(meta.BunNaming))
		d.svc, err = exemplar.NewService[User](repository.NewMemoryBackend[User](catalog), catalog)
		return err
	case "sql":
		cfg.Mongo = database.MongoConfig{}
		if _, err := database.InitDB(ctx, cfg); err != nil {
			return err
		}
		d.close = database.CloseDB
		catalog := meta.NewCatalog(meta.WithNaming(meta.BunNaming))
		d.svc, err = exemplar.NewService[User](repository.NewBunBackend[User](database.GetDB()), catalog)
		return err
	case "mongo":
		cfg.Connection = database.ConnectionConfig{}
		if _, err := database.InitDB(ctx, cfg); err != nil {
			return err
		}
		d.close = database.CloseDB
		collection, err := database.GetMongoCollection("users")
		if err != nil {
			return err
		}
		var opts []repository.MongoOption
		if cfg.Mongo.Transactions {
			opts = append(opts, repository.WithTransactions())
		}
		catalog := meta.NewCatalog(meta.WithNaming(meta.BSONNaming))
		backend := repository.NewMongoBackend[User](database.GetMongo().Client(), collection, opts...)
		d.svc, err = exemplar.NewService[User](backend, catalog)
		return err
	default:
		return errors.Errorf("unknown store %q", d.store)
	}
}

func (d *demo) newRegisterCommand() *cobra.Command {
	var user User
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a user.",
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := d.register(cmd.Context(), user.Name, user.Email, user.Password)
			if err != nil {
				return err
			}
			fmt.Fprintf(d.stdout, "registered %s (%s)\n", created.Email, created.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&user.Name, "name", "", "Display name.")
	cmd.Flags().StringVar(&user.Email, "email", "", "Login email.")
	cmd.Flags().StringVar(&user.Password, "password", "", "Password.")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (d *demo) newLoginCommand() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Find the user with an email and password.",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := d.login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(d.stdout, "welcome %s (%s)\n", user.Name, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Login email.")
	cmd.Flags().StringVar(&password, "password", "", "Password.")
	return cmd
}

func (d *demo) newRenameCommand() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "rename",
		Short: "Change the name of the user with an id.",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := d.svc.UpdateByID(cmd.Context(), id, &User{Name: name})
			if err != nil {
				return err
			}
			fmt.Fprintf(d.stdout, "%d user(s) renamed\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "User id.")
	cmd.Flags().StringVar(&name, "name", "", "New name.")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (d *demo) newListCommand() *cobra.Command {
	var (
		example    User
		page, size int
		desc       bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users matching the given fields.",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := types.Asc
			if desc {
				dir = types.Desc
			}
			result, err := d.svc.Page(cmd.Context(), &example, types.NewPageRequest(page, size, "name", dir))
			if err != nil {
				return err
			}
			for _, u := range result.Items {
				fmt.Fprintf(d.stdout, "%s\t%s\t%s\n", u.ID, u.Name, u.Email)
			}
			fmt.Fprintf(d.stdout, "page %d/%d, %d user(s)\n", result.Page, result.Pages(), result.Total)
			return nil
		},
	}
	cmd.Flags().StringVar(&example.Name, "name", "", "Only users with this name.")
	cmd.Flags().StringVar(&example.Email, "email", "", "Only users with this email.")
	cmd.Flags().IntVar(&page, "page", 1, "Page number, from 1.")
	cmd.Flags().IntVar(&size, "size", 10, "Users per page.")
	cmd.Flags().BoolVar(&desc, "desc", false, "Sort by name descending.")
	return cmd
}

func (d *demo) newScenarioCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scenario",
		Short: "Register, log in and rename a throwaway user.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			email := fmt.Sprintf("%s@example.com", uuid.NewString()[:8])
			user, err := d.register(ctx, "Ada", email, "secret")
			if err != nil {
				return err
			}
			fmt.Fprintf(d.stdout, "registered %s\n", user.ID)

			if _, err := d.login(ctx, email, "secret"); err != nil {
				return err
			}
			fmt.Fprintln(d.stdout, "logged in by example")

			if _, err := d.svc.UpdateByID(ctx, user.ID, &User{Name: "Ada Lovelace"}); err != nil {
				return err
			}
			renamed, err := d.svc.FindByID(ctx, user.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(d.stdout, "renamed to %s\n", renamed.Name)

			n, err := d.svc.Delete(ctx, renamed)
			if err != nil {
				return err
			}
			fmt.Fprintf(d.stdout, "%d user(s) removed\n", n)
			return nil
		},
	}
}

func (d *demo) register(ctx context.Context, name, email, password string) (*User, error) {
	user := &User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Password:  password,
		CreatedAt: time.Now().UTC(),
	}
	if err := d.svc.Insert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// login looks the user up by email and password. Blank credentials would
// drop out of the example and match any user, so they are refused first.
func (d *demo) login(ctx context.Context, email, password string) (*User, error) {
	if qbe.IsNull(email) || qbe.IsNull(password) {
		return nil, errors.New("email and password are required")
	}
	user, err := d.svc.FindOne(ctx, &User{Email: email, Password: password})
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errors.New("wrong email or password")
	}
	return user, err
}
