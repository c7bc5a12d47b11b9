package cmd

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/howeyc/gopass"
	"github.com/spf13/cobra"

	"github.com/sammck/secret-kv/project"
)

// version
const (
	major = "1"
	minor = "0"
	patch = "0"
)

// Global flags.
var (
	dir    string
	noScan bool
	prompt bool
	debug  bool
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

var rootCmd = &cobra.Command{
	Use:   "secret-kv",
	Short: "Manage a project-local encrypted key/value store",
	// Errors are reported once, by check.
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		}
	},
}

// Execute runs the command line.
func Execute() {
	check(rootCmd.Execute())
}

func init() {
	log.SetFlags(0)

	rootCmd.PersistentFlags().StringVarP(&dir, "dir", "d", ".", "store directory or config file")
	rootCmd.PersistentFlags().BoolVar(&noScan, "no-scan", false, "do not search parent directories for the store")
	rootCmd.PersistentFlags().BoolVarP(&prompt, "prompt", "p", false, "prompt for the passphrase instead of using the keyring")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log store operations to stderr")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(delCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(tagsCmd)
	rootCmd.AddCommand(tagCmd)
	rootCmd.AddCommand(passphraseCmd)
	rootCmd.AddCommand(rekeyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(versionCmd)
}

func check(err error) {
	if err != nil {
		log.Fatal("[error] ", err)
	}
}

// readPassphrase prompts on the terminal without echo.
func readPassphrase(label string) string {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	pass, err := gopass.GetPasswd()
	if err != nil {
		log.Fatal("cannot read passphrase")
	}
	return string(pass)
}

// newPassphrase prompts twice for a passphrase and checks both match.
func newPassphrase() string {
	pass := readPassphrase("New passphrase")
	if pass == "" {
		log.Fatal("[error] empty passphrase")
	}
	if readPassphrase("Confirm passphrase") != pass {
		log.Fatal("[error] passphrases do not match")
	}
	return pass
}

func options() *project.Options {
	opts := &project.Options{NoScan: noScan, Logger: logger}
	if prompt {
		opts.Passphrase = readPassphrase("Passphrase")
	}
	return opts
}

// openStore opens the project store selected by the global flags.
func openStore() *project.Store {
	s, err := project.Open(dir, options())
	check(err)
	return s
}
