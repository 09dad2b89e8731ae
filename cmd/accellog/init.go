package main

import (
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/errgo.v1"

	"github.com/rogpeppe/accellog/accelconfig"
)

const defaultConfigFile = "accellog.yaml"

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "create a configuration template",
	Long: `init creates a configuration file holding the default settings.
The device ID and secret must be filled in before the file can be used
with the serve command. The secret may instead be provided in the
ACCELLOG_SECRET environment variable.
`,
	Example: `  accellog init --print
  accellog init -o /etc/accellog.yaml -y`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func initCmdFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("print", false, "print the configuration to stdout")
	cmd.Flags().BoolP("yes", "y", false, "overwrite any existing file")
	cmd.Flags().StringP("output", "o", defaultConfigFile, "configuration file to write")
}

func runInit(cmd *cobra.Command, args []string) error {
	data, err := accelconfig.Default().Marshal()
	if err != nil {
		return errgo.Mask(err)
	}
	if ok, _ := cmd.Flags().GetBool("print"); ok {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	path, _ := cmd.Flags().GetString("output")
	overwrite, _ := cmd.Flags().GetBool("yes")
	if err := writeConfig(path, data, overwrite); err != nil {
		return errgo.Mask(err)
	}
	logger.Infof("configuration written to %s", path)
	return nil
}

func writeConfig(path string, data []byte, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}
	// The file may hold a secret.
	f, err := os.OpenFile(path, flags, 0600)
	if err != nil {
		if os.IsExist(err) {
			return errgo.Newf("%s already exists (use -y to overwrite)", path)
		}
		return errgo.Mask(err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return errgo.Mask(err)
	}
	return errgo.Mask(f.Close())
}
