package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/levyledger/levyd/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starting-point configuration file",
	Long: `Write a commented starting-point configuration to path (default
levyd.toml). Edit the genesis section before first start; at minimum the
owner and treasury addresses must be filled in, for example from
"levyd keygen".`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "levyd.toml"
		if len(args) == 1 {
			path = args[0]
		}
		if !initForce {
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
		}
		if err := config.SaveExample(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing file")
}
