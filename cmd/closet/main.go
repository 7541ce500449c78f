package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"closet-go/internal/app"
	"closet-go/internal/closet"
	"closet-go/internal/config"
	"closet-go/internal/model"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", displayError(err))
		os.Exit(1)
	}
}

// displayError shows domain errors the way the closet package words them and
// everything else (config, local files) verbatim.
func displayError(err error) string {
	if closet.KindOf(err) == closet.KindUnknown &&
		!errors.Is(err, closet.ErrInvalidState) &&
		!errors.Is(err, closet.ErrOperationPending) &&
		!errors.Is(err, closet.ErrSessionActive) {
		return err.Error()
	}
	return closet.UserMessage(err)
}

// newApp reads the config and creates a ClosetApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "Login", "Upload").
func newApp(cmd *cobra.Command, operation string) (*app.ClosetApp, error) {
	paths, err := app.DefaultPaths()
	if err != nil {
		return nil, fmt.Errorf("locating closet files: %w", err)
	}

	cfg, err := config.ReadFromFile(paths.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewClosetApp(cmd.Context(), cfg, operation, app.Options{Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassword prompts on the terminal without echo, or reads one line when
// stdin is not a terminal.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

func printItem(it model.Item) {
	star := " "
	if it.IsFavorite {
		star = "*"
	}
	fmt.Printf("%s %s  %-12s %-10s %-12s %s\n",
		star, it.ID, dash(it.Category), dash(it.Color), dash(it.Brand),
		it.CreatedAt.Time.Local().Format("2006-01-02"))
}

// printJSON writes a server response indented, or as is if it does not indent.
func printJSON(raw json.RawMessage) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(buf.String())
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

var rootCmd = &cobra.Command{
	Use:           "closet",
	Short:         "Digital wardrobe client",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(".env")
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and the session encryption key",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("locating closet files: %w", err)
		}

		cfg := paths.NewConfig()
		if url, _ := cmd.Flags().GetString("api-url"); url != "" {
			cfg.Gateway.BaseURL = url
		}

		if err := app.InitConfig(paths.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", paths.ConfigPath)
		fmt.Printf("API URL:  %s\n", cfg.Gateway.BaseURL)
		fmt.Printf("Base Dir: %s\n", paths.BaseDir)
		fmt.Printf("Key:      %s\n", paths.KeyPath)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := app.DefaultPaths()
		if err != nil {
			return fmt.Errorf("locating closet files: %w", err)
		}

		cfg, err := config.ReadFromFile(paths.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", paths.ConfigPath)
		fmt.Printf("Gateway:  %s %s\n", cfg.Gateway.Type, cfg.Gateway.BaseURL)
		fmt.Printf("Session:  %s %s\n", cfg.Session.Type, cfg.Session.DataDir)
		fmt.Printf("Key:      %s\n", cfg.Encryption.KeyPath)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:  %s\n", cfg.LogDir)
		return nil
	},
}

// account commands
var signupCmd = &cobra.Command{
	Use:   "signup EMAIL",
	Short: "Create an account and sign in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")

		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "Signup")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Signup(cmd.Context(), args[0], password, name); err != nil {
			return err
		}
		fmt.Printf("Signed up as %s\n", args[0])
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login EMAIL",
	Short: "Sign in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword("Password: ")
		if err != nil {
			return err
		}

		a, err := newApp(cmd, "Login")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Login(cmd.Context(), args[0], password); err != nil {
			return err
		}
		fmt.Printf("Signed in as %s\n", args[0])
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Logout")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "WhoAmI")
		if err != nil {
			return err
		}
		defer a.Close()

		sess, ok := a.WhoAmI()
		if !ok {
			fmt.Println("Not signed in.")
			return nil
		}
		fmt.Printf("%s (%s)\n", sess.Email, sess.UserID)
		return nil
	},
}

// item commands
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List items in your closet",
	RunE: func(cmd *cobra.Command, args []string) error {
		criteria := model.FilterCriteria{}
		criteria.Query, _ = cmd.Flags().GetString("query")
		criteria.Category, _ = cmd.Flags().GetString("category")
		criteria.Color, _ = cmd.Flags().GetString("color")
		criteria.FavoritesOnly, _ = cmd.Flags().GetBool("favorites")

		a, err := newApp(cmd, "List")
		if err != nil {
			return err
		}
		defer a.Close()

		view, err := a.List(cmd.Context(), criteria)
		if err != nil {
			return err
		}

		if len(view.Items) == 0 {
			fmt.Println("No items.")
		}
		for _, it := range view.Items {
			printItem(it)
		}
		if facets, _ := cmd.Flags().GetBool("facets"); facets {
			fmt.Printf("\nCategories: %s\n", strings.Join(view.Categories, ", "))
			fmt.Printf("Colors:     %s\n", strings.Join(view.Colors, ", "))
		}
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [QUERY]",
	Short: "Search items on the server",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		criteria := model.SearchCriteria{}
		if len(args) > 0 {
			criteria.Query = args[0]
		}
		criteria.Category, _ = cmd.Flags().GetString("category")
		criteria.Color, _ = cmd.Flags().GetString("color")
		criteria.Brand, _ = cmd.Flags().GetString("brand")
		if cmd.Flags().Changed("favorite") {
			fav, _ := cmd.Flags().GetBool("favorite")
			criteria.IsFavorite = &fav
		}

		a, err := newApp(cmd, "Search")
		if err != nil {
			return err
		}
		defer a.Close()

		items, err := a.Search(cmd.Context(), criteria)
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("No matching items.")
			return nil
		}
		for _, it := range items {
			printItem(it)
		}
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload IMAGE",
	Short: "Add an item from a JPEG, PNG or WebP image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		meta := model.ItemMetadata{}
		meta.Category, _ = cmd.Flags().GetString("category")
		meta.Color, _ = cmd.Flags().GetString("color")
		meta.Brand, _ = cmd.Flags().GetString("brand")
		meta.Notes, _ = cmd.Flags().GetString("notes")

		a, err := newApp(cmd, "Upload")
		if err != nil {
			return err
		}
		defer a.Close()

		item, err := a.Upload(cmd.Context(), args[0], meta)
		if err != nil {
			return err
		}
		fmt.Printf("Uploaded %s\n", item.ID)
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete an item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Remove")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var favCmd = &cobra.Command{
	Use:   "fav ID",
	Short: "Toggle an item's favorite flag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "ToggleFavorite")
		if err != nil {
			return err
		}
		defer a.Close()

		fav, err := a.ToggleFavorite(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if fav {
			fmt.Printf("%s is now a favorite\n", args[0])
		} else {
			fmt.Printf("%s is no longer a favorite\n", args[0])
		}
		return nil
	},
}

// history command
var outfitsCmd = &cobra.Command{
	Use:   "outfits",
	Short: "Ask the server for outfit suggestions from your items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := closet.OutfitRequest{}
		req.Occasion, _ = cmd.Flags().GetString("occasion")
		req.Weather, _ = cmd.Flags().GetString("weather")
		req.StylePreference, _ = cmd.Flags().GetString("style")

		a, err := newApp(cmd, "Outfits")
		if err != nil {
			return err
		}
		defer a.Close()

		raw, err := a.Outfits(cmd.Context(), req)
		if err != nil {
			return err
		}
		printJSON(raw)
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Ask the server which essentials your closet is missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "Analyze")
		if err != nil {
			return err
		}
		defer a.Close()

		raw, err := a.Analyze(cmd.Context())
		if err != nil {
			return err
		}
		printJSON(raw)
		return nil
	},
}

var weatherCmd = &cobra.Command{
	Use:   "weather [LOCATION]",
	Short: "Get clothing advice for the weather at a location",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		location := ""
		if len(args) > 0 {
			location = args[0]
		}

		a, err := newApp(cmd, "Weather")
		if err != nil {
			return err
		}
		defer a.Close()

		raw, err := a.Weather(cmd.Context(), location)
		if err != nil {
			return err
		}
		printJSON(raw)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recorded operations",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "History")
		if err != nil {
			return err
		}
		defer a.Close()

		ops, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(ops) == 0 {
			fmt.Println("No operations recorded.")
			return nil
		}

		for _, op := range ops {
			duration := ""
			if op.FinishedAt.Valid {
				d := op.FinishedAt.Time.Sub(op.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			fmt.Printf("#%d  %-15s  %s  %-8s  %-10s  %s\n",
				op.ID,
				op.Operation,
				op.StartedAt.Local().Format("2006-01-02 15:04:05"),
				op.Status,
				duration,
				op.Parameters,
			)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Copy log output to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("api-url", "", "API base URL (default "+config.DefaultAPIURL+")")
	configCmd.AddCommand(configListCmd)

	// account
	rootCmd.AddCommand(signupCmd)
	signupCmd.Flags().String("name", "", "Full name")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	// items
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringP("query", "q", "", "Match category, color, brand or notes")
	listCmd.Flags().String("category", "", "Exact category")
	listCmd.Flags().String("color", "", "Exact color")
	listCmd.Flags().BoolP("favorites", "f", false, "Favorites only")
	listCmd.Flags().Bool("facets", false, "Also print the distinct categories and colors")

	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().String("category", "", "Category")
	searchCmd.Flags().String("color", "", "Color")
	searchCmd.Flags().String("brand", "", "Brand")
	searchCmd.Flags().Bool("favorite", false, "Only favorites (--favorite=false for non-favorites)")

	rootCmd.AddCommand(uploadCmd)
	uploadCmd.Flags().String("category", "", "Category")
	uploadCmd.Flags().String("color", "", "Color")
	uploadCmd.Flags().String("brand", "", "Brand")
	uploadCmd.Flags().String("notes", "", "Free-form notes")

	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(favCmd)

	// advice
	rootCmd.AddCommand(outfitsCmd)
	outfitsCmd.Flags().String("occasion", "", "Occasion, e.g. work or wedding")
	outfitsCmd.Flags().String("weather", "", "Expected weather")
	outfitsCmd.Flags().String("style", "", "Style preference")
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(weatherCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
}
