package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sammck/secret-kv/passphrase"
	"github.com/sammck/secret-kv/project"
	"github.com/sammck/secret-kv/secret"
)

var (
	engine        string
	defaultRecord bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a store in the directory given by --dir",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		kind, err := secret.ParseEngineKind(engine)
		check(err)
		opts := options()
		opts.Engine = kind
		s, err := project.Create(dir, opts)
		check(err)
		defer s.Close()
		fmt.Println(color.GreenString("created"), s.Project.ConfigFile)
	},
}

var destroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Delete the store, its config and its keyring record",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		configFile, err := project.Destroy(dir, &project.Options{NoScan: noScan})
		check(err)
		fmt.Println(color.RedString("destroyed"), configFile)
	},
}

var rekeyCmd = &cobra.Command{
	Use:   "rekey",
	Short: "Re-encrypt the store under a new passphrase",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		s := openStore()
		defer s.Close()
		check(s.ChangePassphrase(newPassphrase()))
		fmt.Println(color.GreenString("passphrase changed"))
	},
}

var passphraseCmd = &cobra.Command{
	Use:   "passphrase",
	Short: "Manage passphrases recorded in the keyring",
}

var passphraseSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Record the passphrase of the store, or the default one",
	Long: `Record the passphrase of the store, or with --default the passphrase
used by stores that have none recorded. This does not re-encrypt the
store; use rekey for that.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if defaultRecord {
			check(passphrase.NewResolver(passphrase.Keyring{}).SetDefault(newPassphrase()))
			return
		}
		p := loadProject()
		check(p.Resolver().Store(p.PassphraseKey, newPassphrase()))
	},
}

var passphraseGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the passphrase of the store, or the default one",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		var pass string
		var err error
		if defaultRecord {
			pass, err = passphrase.NewResolver(passphrase.Keyring{}).Default()
		} else {
			pass, err = loadProject().Passphrase()
		}
		check(err)
		fmt.Println(pass)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("secret-kv v%s.%s.%s\n", major, minor, patch)
	},
}

func init() {
	initCmd.Flags().StringVar(&engine, "engine", string(secret.EngineBolt), "store format: bolt or file")

	passphraseCmd.PersistentFlags().BoolVar(&defaultRecord, "default", false, "use the default passphrase record")
	passphraseCmd.AddCommand(passphraseSetCmd)
	passphraseCmd.AddCommand(passphraseGetCmd)
}

func loadProject() *project.Project {
	configFile, err := project.Locate(dir, !noScan)
	check(err)
	p, err := project.Load(configFile, passphrase.Keyring{})
	check(err)
	return p
}
