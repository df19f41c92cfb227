package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/apex/log"
	clihander "github.com/apex/log/handlers/cli"
	macho "github.com/appsworld/machoprot"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

func init() {
	log.SetHandler(clihander.New(os.Stderr))

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/machoprot/config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "V", false, "verbose output")
	rootCmd.PersistentFlags().Bool("no-color", false, "disable colorize output")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("no-color", rootCmd.PersistentFlags().Lookup("no-color"))

	rootCmd.Flags().StringP("field", "f", "both", "Protection field to patch (init, max or both)")
	rootCmd.Flags().Bool("buffered", false, "Read and rewrite the file instead of mapping it")
	rootCmd.Flags().BoolP("dry-run", "n", false, "Show what would change without writing")
	viper.BindPFlag("machoprot.field", rootCmd.Flags().Lookup("field"))
	viper.BindPFlag("machoprot.buffered", rootCmd.Flags().Lookup("buffered"))
	viper.BindPFlag("machoprot.dry-run", rootCmd.Flags().Lookup("dry-run"))
	rootCmd.MarkZshCompPositionalArgumentFile(1)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".config", "machoprot"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("machoprot")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		log.Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		log.WithError(err).Warn("failed to read config file")
	}
}

func setup() {
	if viper.GetBool("verbose") {
		log.SetLevel(log.DebugLevel)
	}
	color.NoColor = color.NoColor || viper.GetBool("no-color")
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "machoprot <MACHO> <SEGMENT> <rwx>",
	Short: "Patch the VM protections of a MachO segment in place",
	Long: `Rewrite the maxprot and/or initprot of every segment command named SEGMENT,
in every architecture of a thin or universal MachO.

Permissions are any combination of r, w and x; pass "" to remove all of them.`,
	Example: `  machoprot ./a.out __TEXT rwx --field max
  machoprot ./libfoo.dylib __DATA rw`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 3 {
			return &macho.UsageError{Arg: "arguments", Err: errors.Errorf("accepts 3 arg(s), received %d", len(args))}
		}
		return nil
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		setup()

		machoPath := filepath.Clean(args[0])

		req, err := macho.ParseRequest(args[1], args[2], viper.GetString("machoprot.field"))
		if err != nil {
			return err
		}

		dryRun := viper.GetBool("machoprot.dry-run")
		res, err := macho.PatchFile(machoPath, req,
			macho.WithBuffered(viper.GetBool("machoprot.buffered")),
			macho.WithDryRun(dryRun),
		)
		if err != nil {
			return errors.Wrapf(err, "failed to patch %s", machoPath)
		}

		verb := "Patched"
		if dryRun {
			verb = "Would patch"
		}
		for _, c := range res.Changes {
			log.WithFields(log.Fields{
				"arch":     res.Slices[c.Slice].Arch(),
				"initprot": fmt.Sprintf("%s -> %s", c.Prot, c.NewProt),
				"maxprot":  fmt.Sprintf("%s -> %s", c.Maxprot, c.NewMaxprot),
			}).Infof("%s %s", verb, c.Name)
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var uerr *macho.UsageError
		if errors.As(err, &uerr) {
			rootCmd.SetOut(os.Stderr)
			rootCmd.Usage()
		}
		log.Error(err.Error())
		os.Exit(1)
	}
}
