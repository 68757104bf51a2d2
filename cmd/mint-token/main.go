// Command mint-token signs the tokens the server hands out, for local testing and scripting.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/contactdesk/server/internal/auth"
)

func main() {
	_ = godotenv.Load(".env")

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "vonage":
		err = cmdVonage(args)
	case "refresh":
		err = cmdRefresh(args)
	case "verify":
		err = cmdVerify(args)
	case "user":
		err = cmdUser(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Println("Usage: mint-token <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  vonage [--sub name] [--exp 24h]      SDK token for a vendor user (admin token without --sub)")
	fmt.Println("  refresh <device-id> <user-id>        Device refresh token")
	fmt.Println("  verify <refresh-token>               Decode and check a device refresh token")
	fmt.Println("  user <user-id> [email]               Access token of a signed-in user")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  VONAGE_PRIVATE_KEY, VONAGE_APPLICATION_ID   vonage")
	fmt.Println("  DEVICE_REFRESH_TOKEN_SECRET                 refresh, verify")
	fmt.Println("  SUPABASE_JWT_SECRET                         user")
	fmt.Println()
}

func requireEnv(name string) (string, error) {
	v := os.Getenv(name)
	if v == "" {
		return "", fmt.Errorf("%s is not set", name)
	}
	return v, nil
}

func printToken(kind, token string) {
	green := color.New(color.FgGreen)
	green.Fprintf(os.Stderr, "%s token:\n", kind)
	fmt.Println(token)
}

func cmdVonage(args []string) error {
	fs := flag.NewFlagSet("vonage", flag.ContinueOnError)
	sub := fs.String("sub", "", "vendor username")
	exp := fs.Duration("exp", 24*time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}

	key, err := requireEnv("VONAGE_PRIVATE_KEY")
	if err != nil {
		return err
	}
	appID, err := requireEnv("VONAGE_APPLICATION_ID")
	if err != nil {
		return err
	}

	opts := auth.DefaultTokenOptions()
	opts.Exp = *exp
	token, err := auth.MintVonageToken(strings.ReplaceAll(key, `\n`, "\n"), appID, *sub, opts)
	if err != nil {
		return err
	}
	kind := "Admin"
	if *sub != "" {
		kind = "SDK (" + *sub + ")"
	}
	printToken(kind, token)
	return nil
}

func cmdRefresh(args []string) error {
	if len(args) != 2 {
		return errors.New("usage: mint-token refresh <device-id> <user-id>")
	}
	for _, id := range args {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("%q is not a uuid", id)
		}
	}
	secret, err := requireEnv("DEVICE_REFRESH_TOKEN_SECRET")
	if err != nil {
		return err
	}
	token, err := auth.MintDeviceRefreshToken(secret, auth.RefreshPayload{DeviceID: args[0], UserID: args[1]})
	if err != nil {
		return err
	}
	printToken("Refresh", token)
	return nil
}

func cmdVerify(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: mint-token verify <refresh-token>")
	}
	secret, err := requireEnv("DEVICE_REFRESH_TOKEN_SECRET")
	if err != nil {
		return err
	}
	payload := auth.VerifyDeviceRefreshToken(secret, args[0])
	if payload == nil {
		return errors.New("invalid refresh token")
	}
	color.Green("Valid refresh token")
	fmt.Printf("  device: %s\n  user:   %s\n", payload.DeviceID, payload.UserID)
	return nil
}

func cmdUser(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: mint-token user <user-id> [email]")
	}
	userID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("%q is not a uuid", args[0])
	}
	email := ""
	if len(args) == 2 {
		email = args[1]
	}
	secret, err := requireEnv("SUPABASE_JWT_SECRET")
	if err != nil {
		return err
	}
	token, err := auth.NewJWTService(secret).SignUserToken(userID, email)
	if err != nil {
		return err
	}
	printToken("User", token)
	return nil
}
