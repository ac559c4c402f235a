package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/onimtaitsl/venpaa-label-bridge/internal/api"
	"github.com/onimtaitsl/venpaa-label-bridge/internal/config"
	"github.com/onimtaitsl/venpaa-label-bridge/internal/export"
	"github.com/onimtaitsl/venpaa-label-bridge/internal/ipc"
	"github.com/onimtaitsl/venpaa-label-bridge/internal/labeljob"
)

// version is set at build time via -ldflags "-X main.version=<version>"
var version string

var validate = validator.New()

func main() {
	_ = godotenv.Load() // load .env if it exists

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "labelbridge",
		Short:         "Bridge between the inventory service and the label printing application",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("config", os.Getenv("LABELBRIDGE_CONFIG"), "Path to config.txt (default: next to the executable)")

	rootCmd.AddCommand(
		newConfigCmd(),
		newPrintCmd(),
		newSearchCmd(),
		newLoginCmd(),
		newLocationsCmd(),
		newServeCmd(),
	)
	return rootCmd
}

// newService builds the service from the --config flag.
func newService(cmd *cobra.Command) *labeljob.Service {
	path, _ := cmd.Flags().GetString("config")
	return labeljob.New(config.NewStore(path), nil, nil)
}

// fail prints err with its kind and returns it so cobra exits non-zero.
func fail(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), labeljob.Describe(err))
	return err
}

// secretFlag returns the flag value, or the environment variable when the flag was
// not given. Secrets are never registered as flag defaults so help output stays clean.
func secretFlag(cmd *cobra.Command, name, envKey string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	return os.Getenv(envKey)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Load config.txt, creating a default one if it is missing or incomplete",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("config")
			store := config.NewStore(path)
			cfg, err := store.Load()
			if err != nil {
				return fail(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s\n", store.Path(), cfg)
			return nil
		},
	}
}

func newPrintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print",
		Short: "Export items to the data file and open the label template",
		Long: "Reads a JSON array of items ({code, name, price, qty, barcode}) from --items\n" +
			"(or stdin with '-'), writes one line per copy to DATA_FILE_PATH and opens\n" +
			"TEMPLATE_FILE_PATH with its associated application.",
		RunE: runPrint,
	}
	cmd.Flags().String("items", "-", "JSON file with the items to print, '-' for stdin")
	cmd.Flags().Bool("no-launch", false, "Only write the data file")
	return cmd
}

func runPrint(cmd *cobra.Command, args []string) error {
	itemsPath, _ := cmd.Flags().GetString("items")
	noLaunch, _ := cmd.Flags().GetBool("no-launch")

	items, err := readItems(cmd.InOrStdin(), itemsPath)
	if err != nil {
		return fail(cmd, err)
	}
	if len(items) == 0 {
		return fail(cmd, errors.New("no items to print"))
	}

	path, _ := cmd.Flags().GetString("config")
	store := config.NewStore(path)

	if noLaunch {
		cfg, err := store.Load()
		if err != nil {
			return fail(cmd, err)
		}
		sum, err := export.Export(cfg.DataFilePath, items)
		if err != nil {
			return fail(cmd, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d labels to %s\n", sum.Lines, sum.Path)
		return nil
	}

	res, err := labeljob.New(store, nil, nil).Print(items)
	if res != nil && res.Exported {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d labels to %s\n", res.Summary.Lines, res.Summary.Path)
	}
	if err != nil {
		return fail(cmd, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Success")
	return nil
}

func readItems(stdin io.Reader, path string) ([]export.Item, error) {
	var r io.Reader = stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open items file: %w", err)
		}
		defer f.Close()
		r = f
	}
	var items []export.Item
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("parse items: %w", err)
	}
	return items, nil
}

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search products by name or code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := secretFlag(cmd, "token", "LABELBRIDGE_TOKEN")
			qty, _ := cmd.Flags().GetInt("qty")

			products, err := newService(cmd).Search(cmd.Context(), args[0], token)
			if err != nil {
				return fail(cmd, err)
			}
			// Print as items so the output can be edited and fed to "print".
			items := make([]export.Item, 0, len(products))
			for _, p := range products {
				items = append(items, p.Item(qty))
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().String("token", "", "Bearer token from login (default $LABELBRIDGE_TOKEN)")
	cmd.Flags().Int("qty", 1, "Quantity to fill into each result")
	return cmd
}

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and print the login response",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			location, _ := cmd.Flags().GetString("location")
			password := []byte(secretFlag(cmd, "password", "LABELBRIDGE_PASSWORD"))
			req := api.NewLoginRequest(name, password, location)
			defer req.Destroy()
			if err := validate.Struct(req); err != nil {
				return fail(cmd, fmt.Errorf("invalid login request: %w", err))
			}

			body, err := newService(cmd).Login(cmd.Context(), req)
			if err != nil {
				return fail(cmd, err)
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
	cmd.Flags().String("name", "", "User name")
	cmd.Flags().String("password", "", "Password (default $LABELBRIDGE_PASSWORD)")
	cmd.Flags().String("location", "", "Location code (optional)")
	return cmd
}

func newLocationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "locations",
		Short: "List locations",
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := newService(cmd).Locations(cmd.Context())
			if err != nil {
				return fail(cmd, err)
			}
			return printJSON(cmd.OutOrStdout(), body)
		},
	}
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve operations to the desktop shell over a local socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			socketPath, _ := cmd.Flags().GetString("socket")
			svc := newService(cmd)

			// First run: make sure a config file exists for the operator to edit.
			if _, err := svc.Config(); err != nil {
				log.Printf("[config] %v", err)
			}

			srv, err := ipc.NewServer(socketPath, svc)
			if err != nil {
				return fail(cmd, err)
			}
			defer srv.Close()

			ctx, cancel := setupSignalHandler(cmd.Context())
			defer cancel()
			return srv.Serve(ctx)
		},
	}
	socket := os.Getenv("LABELBRIDGE_SOCKET")
	if socket == "" {
		socket = ipc.SocketPath()
	}
	cmd.Flags().String("socket", socket, "Unix socket path or Windows pipe name")
	return cmd
}

// setupSignalHandler returns a context cancelled on SIGINT/SIGTERM.
func setupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			log.Printf("Received signal %v, shutting down...", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
