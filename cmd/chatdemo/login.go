package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/restsend/chatkit/internal/restapi"
)

func cmdLogin() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Exchange a user id and password for an auth token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth(cmd, password, false)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func cmdSignup() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a new account and print its auth token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAuth(cmd, password, true)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func runAuth(cmd *cobra.Command, password string, signup bool) error {
	endpoint, _ := cmd.Flags().GetString("endpoint")
	userID, _ := cmd.Flags().GetString("user")
	if userID == "" {
		return fmt.Errorf("--user is required")
	}

	api := restapi.New(endpoint, "", "/api", 30*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	var token string
	if signup {
		info, signupErr := api.Signup(ctx, userID, password)
		err = signupErr
		token = info.Token
	} else {
		info, loginErr := api.Login(ctx, userID, password)
		err = loginErr
		token = info.Token
	}
	if err != nil {
		return err
	}

	fmt.Printf("token: %s\n", token)
	return nil
}
