package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"text/tabwriter"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/fleetdesk/go-client/apierr"
	"github.com/fleetdesk/go-client/console"
	"github.com/fleetdesk/go-client/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %s\n", apierr.UserMessage(err))
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	// Missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	email := flag.String("email", "", "login email")
	password := flag.String("password", "", "login password")
	remember := flag.Bool("remember", false, "keep the session across restarts")
	list := flag.String("list", "devices", "resource to list: devices | assets | users | unassigned")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Parse()

	cfg := config.New()
	displayAppname(cfg.GetAppName())

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
	if !*verbose {
		logger = logger.Level(zerolog.WarnLevel)
	}

	c, err := console.New(cfg,
		console.WithLogger(logger),
		console.WithSessionExpiredHandler(func() {
			fmt.Fprintln(os.Stderr, "Session expired. Please log in again.")
		}),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx := context.Background()

	if !c.IsAuthenticated() {
		if *email == "" || *password == "" {
			return errors.New("no active session: -email and -password are required")
		}
		user, err := c.Login(ctx, *email, *password, *remember)
		if err != nil {
			return err
		}
		fmt.Printf("Logged in as %s (%s)\n\n", user.Username, user.Role)
	}

	return listResources(ctx, c, *list)
}

func listResources(ctx context.Context, c *console.Console, resource string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	switch resource {
	case "devices":
		devices, err := c.Devices().List(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION\tASSET")
		for _, d := range devices {
			asset := "-"
			if d.AssetName != nil {
				asset = *d.AssetName
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", d.ID, d.DeviceName, d.Description, asset)
		}
	case "unassigned":
		devices, err := c.Devices().ListUnassigned(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION\tCONFIGURED")
		for _, d := range devices {
			fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", d.ID, d.DeviceName, d.Description, d.IsConfigured)
		}
	case "assets":
		assets, err := c.Assets().List(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "ID\tNAME\tDEVICE")
		for _, a := range assets {
			device := "-"
			if a.DeviceName != nil {
				device = *a.DeviceName
			}
			fmt.Fprintf(w, "%d\t%s\t%s\n", a.ID, a.AssetName, device)
		}
	case "users":
		records, err := c.Users().List(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL")
		for _, u := range records {
			fmt.Fprintf(w, "%d\t%s\t%s\n", u.ID, u.Username, u.Email)
		}
	default:
		return fmt.Errorf("unknown resource %q", resource)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
